package dice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NamePrefix prefixes every collectible name ("Dice#7").
const NamePrefix = "Dice#"

// Collectible is one catalog image. Immutable once appended.
type Collectible struct {
	// Number is the 1-based position in the community catalog; derived from Name.
	Number int    `json:"-"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

// NewCollectible builds the collectible for sequence number n.
func NewCollectible(n int, url string) Collectible {
	return Collectible{Number: n, Name: CollectibleName(n), URL: url}
}

// CollectibleName formats the display name for sequence number n.
func CollectibleName(n int) string {
	return NamePrefix + strconv.Itoa(n)
}

// ParseName extracts the sequence number from "Dice#<n>".
func ParseName(name string) (int, error) {
	if !strings.HasPrefix(name, NamePrefix) {
		return 0, fmt.Errorf("name %q lacks %s prefix", name, NamePrefix)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, NamePrefix))
	if err != nil {
		return 0, fmt.Errorf("name %q: %w", name, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("name %q: sequence number must be positive", name)
	}
	return n, nil
}

// Account is a member's balance and collection within one community.
type Account struct {
	Coins  int64 `json:"coins"`
	Points int64 `json:"points"`
	// Owned sequence numbers in grant order, no duplicates.
	Images []int `json:"images"`
}

// Owns reports whether n is in the collection.
func (a *Account) Owns(n int) bool {
	for _, v := range a.Images {
		if v == n {
			return true
		}
	}
	return false
}

func (a *Account) clone() *Account {
	cp := *a
	cp.Images = append(make([]int, 0, len(a.Images)), a.Images...)
	return &cp
}

// Ref is a platform snowflake. Older documents stored channel and role ids as
// JSON numbers, so both encodings are accepted.
type Ref string

func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = Ref(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("ref: %w", err)
	}
	*r = Ref(n.String())
	return nil
}

// Standing is one row of a community leaderboard.
type Standing struct {
	Rank      int    `json:"rank"`
	MemberID  string `json:"member_id"`
	Points    int64  `json:"points"`
	Coins     int64  `json:"coins"`
	Collected int    `json:"collected"`
}

// CollectorStanding is one row of the cross-community ranking.
type CollectorStanding struct {
	Rank      int    `json:"rank"`
	MemberID  string `json:"member_id"`
	Collected int    `json:"collected"`
}
