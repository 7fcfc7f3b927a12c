package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	// MaxCoinGrant caps one admin credit.
	MaxCoinGrant = 1_000_000_000
	// MaxURLLength is the longest attachment URL accepted into a catalog.
	MaxURLLength = 2048
)

// Discord snowflakes are 17 to 20 decimal digits.
var snowflakeRegex = regexp.MustCompile(`^[0-9]{17,20}$`)

// ValidateSnowflake checks a platform id.
func ValidateSnowflake(id, fieldName string) error {
	if id == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if !IsSnowflake(id) {
		return fmt.Errorf("%s is not a valid id", fieldName)
	}
	return nil
}

func IsSnowflake(id string) bool {
	return snowflakeRegex.MatchString(id)
}

// ValidateCoinAmount checks an admin credit.
func ValidateCoinAmount(amount int64) error {
	if err := ValidatePositiveInt(amount, "amount"); err != nil {
		return err
	}
	if amount > MaxCoinGrant {
		return fmt.Errorf("amount cannot exceed %d", MaxCoinGrant)
	}
	return nil
}

// ValidateImageURL accepts absolute http(s) URLs only.
func ValidateImageURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("image url cannot be empty")
	}
	if len(raw) > MaxURLLength {
		return fmt.Errorf("image url cannot exceed %d characters", MaxURLLength)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("image url %q is not an http(s) link", raw)
	}
	return nil
}

func ValidatePositiveInt(value int64, fieldName string) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive", fieldName)
	}
	return nil
}
