package tickets

import (
	"strings"

	"github.com/google/uuid"
)

const shortIDLength = 10

// IDProvider issues ticket and comment identifiers.
type IDProvider interface {
	NewID() (string, error)
}

type shortIDProvider struct{}

// NewShortIDProvider issues short random hex identifiers suitable for URLs.
func NewShortIDProvider() IDProvider {
	return shortIDProvider{}
}

func (shortIDProvider) NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(value.String(), "-", "")[:shortIDLength], nil
}
