package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSnowflake(t *testing.T) {
	assert.NoError(t, ValidateSnowflake("123456789012345678", "channel"))
	assert.EqualError(t, ValidateSnowflake("", "channel"), "channel is required")
	assert.Error(t, ValidateSnowflake("12", "channel"))
	assert.Error(t, ValidateSnowflake("<#123456789012345678>", "channel"))
}

func TestValidateCoinAmount(t *testing.T) {
	assert.NoError(t, ValidateCoinAmount(1))
	assert.NoError(t, ValidateCoinAmount(MaxCoinGrant))
	assert.EqualError(t, ValidateCoinAmount(0), "amount must be positive")
	assert.Error(t, ValidateCoinAmount(MaxCoinGrant+1))
}

func TestValidateImageURL(t *testing.T) {
	assert.NoError(t, ValidateImageURL("https://cdn.discordapp.com/attachments/1/2/dice.png"))
	assert.Error(t, ValidateImageURL(""))
	assert.Error(t, ValidateImageURL("ftp://host/a.png"))
	assert.Error(t, ValidateImageURL("dice.png"))
}
