package vectora

import (
	"crypto/rand"
	"fmt"
)

const nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// maxNameAttempts bounds the retry loop when generated names collide with
// existing datasets.
const maxNameAttempts = 16

// GenerateName returns a dataset name of exactly length characters that is
// not currently in use: prefix, a random lowercase alphanumeric infix, then
// suffix. It fails when prefix and suffix leave no room for randomness.
func (s *Service) GenerateName(length int, prefix, suffix string) (string, error) {
	infix := length - len(prefix) - len(suffix)
	if infix <= 0 {
		return "", fmt.Errorf("name length %d leaves no room for a random part (prefix %d, suffix %d)", length, len(prefix), len(suffix))
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		random, err := randomString(infix)
		if err != nil {
			return "", err
		}

		name := prefix + random + suffix

		s.mu.RLock()
		_, taken := s.datasets[name]
		s.mu.RUnlock()

		if !taken {
			return name, nil
		}
	}

	return "", fmt.Errorf("could not generate an unused name after %d attempts", maxNameAttempts)
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = nameAlphabet[int(b)%len(nameAlphabet)]
	}
	return string(buf), nil
}
