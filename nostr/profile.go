package nostr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Profile is the metadata carried in the content of a kind-0 event.
// Absent fields are nil.
type Profile struct {
	Name        *string `json:"name"`
	DisplayName *string `json:"display_name"`
	About       *string `json:"about"`
	Picture     *string `json:"picture"`
	Banner      *string `json:"banner"`
	Website     *string `json:"website"`
	Lud06       *string `json:"lud06"`
	Lud16       *string `json:"lud16"`
	Nip05       *string `json:"nip05"`
}

// ParseProfile decodes kind-0 content. Unknown fields are ignored.
func ParseProfile(content string) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return nil, fmt.Errorf("%w: profile content: %w", ErrMalformed, err)
	}
	return &p, nil
}

// SearchNames returns the lowercased names the profile can be found by.
func (p *Profile) SearchNames() []string {
	var out []string
	for _, s := range []*string{p.Name, p.DisplayName} {
		if s == nil {
			continue
		}
		n := strings.ToLower(strings.TrimSpace(*s))
		if n != "" && (len(out) == 0 || out[0] != n) {
			out = append(out, n)
		}
	}
	return out
}
