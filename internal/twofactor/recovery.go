package twofactor

import (
	"strings"

	"github.com/dkrasnov/gatekeeper/internal/common"
)

// DefaultRecoveryCodeCount is the size of a recovery-code batch.
const DefaultRecoveryCodeCount = 16

const (
	recoveryAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	recoveryGroupLen  = 4
	recoveryGroups    = 4
	recoverySeparator = "-"
)

// GenerateRecoveryCode returns one random human-typeable recovery code of
// the form xxxx-xxxx-xxxx-xxxx drawn from a lowercase alphanumeric alphabet.
func GenerateRecoveryCode() (string, error) {
	groups := make([]string, recoveryGroups)
	for i := range groups {
		g, err := common.RandString(recoveryGroupLen, recoveryAlphabet)
		if err != nil {
			return "", err
		}
		groups[i] = g
	}
	return strings.Join(groups, recoverySeparator), nil
}

// GenerateRecoveryCodes returns count fresh recovery codes with no
// duplicates within the batch.
func GenerateRecoveryCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for len(codes) < count {
		c, err := GenerateRecoveryCode()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		codes = append(codes, c)
	}
	return codes, nil
}
