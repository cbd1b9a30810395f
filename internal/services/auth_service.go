package services

import (
	"fmt"
	"log"
	"sync"

	"github.com/authorizerdev/authorizer-go"
	"github.com/axisops/releasehub/internal/config"
	"github.com/axisops/releasehub/internal/utils"
)

var (
	authClient *authorizer.AuthorizerClient
	authOnce   sync.Once
)

func IsAuthorizerInitialized() bool {
	return authClient != nil
}

// InitAuthorizer creates the shared Authorizer client lazily, on the first
// authenticated request. The redirect URL is derived from that request.
func InitAuthorizer(cfg *config.Config, requestProtocol, requestHost string) error {
	var initErr error

	authOnce.Do(func() {
		if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
			initErr = fmt.Errorf("authorizer ping failed: %w", err)
			return
		}

		redirectURL := fmt.Sprintf("%s://%s", requestProtocol, requestHost)
		log.Printf("Initializing Authorizer: authorizerURL=%s, clientID=%s, redirectURL=%s",
			cfg.AuthzURL, cfg.AuthzClientID, redirectURL)

		var err error
		authClient, err = authorizer.NewAuthorizerClient(cfg.AuthzClientID, cfg.AuthzURL, redirectURL, nil)
		if err != nil {
			initErr = fmt.Errorf("failed to create authorizer client: %w", err)
			return
		}
	})

	return initErr
}

// ValidateSession verifies a session cookie and the caller's roles against
// the Authorizer service, returning the authenticated user data.
func ValidateSession(cookie string, roles []string) (map[string]interface{}, error) {
	if authClient == nil {
		return nil, fmt.Errorf("authorizer client not initialized")
	}

	rolesPtrs := make([]*string, len(roles))
	for i := range roles {
		rolesPtrs[i] = &roles[i]
	}

	res, err := authClient.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: cookie,
		Roles:  rolesPtrs,
	})
	if err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}
	if res == nil || !res.IsValid {
		return nil, fmt.Errorf("session is not valid")
	}

	return map[string]interface{}{
		"is_valid": res.IsValid,
		"user":     res.User,
	}, nil
}
