package shell

import (
	"github.com/pkg/errors"

	"github.com/famworld/famagent/auth"
	"github.com/famworld/famagent/internal/cli"
)

const maxLoginAttempts = 3

// loginFlow resolves a user the way the auth screen does: sign in, sign up,
// or a federated login.
func loginFlow(authService *auth.Service) (*auth.User, error) {
	for attempt := 0; attempt < maxLoginAttempts; attempt++ {
		choice := cli.QueryUserSelect("Welcome to FAMAGENT", []string{"Sign in", "Sign up", "Continue with Google"})
		switch choice {
		case "Sign in":
			email := cli.QueryUserInput("Email:")
			password := cli.QueryUserPassword("Password:")
			user, err := authService.Login(email, password)
			if errors.Is(err, auth.ErrInvalidCredentials) {
				cli.Error("%s\n", err)
				continue
			}
			return user, err

		case "Sign up":
			name := cli.QueryUserInput("Name:")
			email := cli.QueryUserInput("Email:")
			password := cli.QueryUserPassword("Password:")
			user, err := authService.Signup(name, email, password)
			if errors.Is(err, auth.ErrDuplicateAccount) {
				cli.Error("%s\n", err)
				continue
			}
			return user, err

		case "Continue with Google":
			email := cli.QueryUserInput("Google account email:")
			name := cli.QueryUserInput("Display name:")
			return authService.FederatedLogin(&auth.User{Name: name, Email: email})

		default:
			return nil, errors.New("login aborted")
		}
	}
	return nil, errors.New("too many failed login attempts")
}
