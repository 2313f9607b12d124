package authenticator

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/netops-labs/enms-in-go/pkg/config"
)

// Local checks passwords stored on the user record.
type Local struct {
	hasher *Hasher // nil when passwords are stored as entered
}

// NewLocal returns the database method. Pass a nil hasher when
// hash_user_passwords is off.
func NewLocal(hasher *Hasher) *Local {
	return &Local{hasher: hasher}
}

func (l *Local) Name() string {
	return config.LocalAuthentication
}

func (l *Local) Authenticate(ctx context.Context, input Input) (Attributes, error) {
	if input.User == nil {
		return nil, fmt.Errorf("%w: unknown user", ErrInvalidCredentials)
	}

	value, err := input.Session.Manager().GetField(ctx, input.Session, input.User, "password")
	if err != nil {
		return nil, err
	}
	stored, _ := value.(string)
	if stored == "" {
		return nil, fmt.Errorf("%w: no password set", ErrInvalidCredentials)
	}

	if l.hasher != nil {
		ok, err := l.hasher.Verify(stored, input.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: wrong password", ErrInvalidCredentials)
		}
		return Attributes{}, nil
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(input.Password)) != 1 {
		return nil, fmt.Errorf("%w: wrong password", ErrInvalidCredentials)
	}
	return Attributes{}, nil
}
