package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dl-alexandre/ghimg/internal/auth"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Token management",
	Long: `Commands for storing the GitHub token used for API requests.

Tokens are looked up in this order: --token, GHIMG_TOKEN, GITHUB_TOKEN,
then the token stored for --profile. Without a token requests are
anonymous and subject to the lower unauthenticated rate limit.`,
}

var authSetTokenCmd = &cobra.Command{
	Use:   "set-token [token]",
	Short: "Store a token for the profile",
	Long:  "Store a token for the profile. When no argument is given the token is read from stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthSetToken,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which token would be used",
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored token of the profile",
	RunE:  runAuthLogout,
}

var authProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List profiles with a stored token",
	RunE:  runAuthProfiles,
}

func init() {
	authCmd.AddCommand(authSetTokenCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authProfilesCmd)
	rootCmd.AddCommand(authCmd)
}

// newAuthManager is replaced in tests to avoid touching the system keyring
var newAuthManager = func() *auth.Manager {
	return auth.NewManager(getConfigDir())
}

func readToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runAuthSetToken(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := newOutput(cmd)

	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		var err error
		if token, err = readToken(cmd.InOrStdin()); err != nil {
			return handleError(out, "auth.set-token", nil, err)
		}
	}

	mgr := newAuthManager()
	if warning := mgr.GetStorageWarning(); warning != "" {
		out.Verbose("%s", warning)
	}
	if err := mgr.SetToken(flags.Profile, token); err != nil {
		return handleError(out, "auth.set-token", nil, err)
	}

	out.Log("Token stored for profile: %s", flags.Profile)
	return out.WriteSuccess("auth.set-token", map[string]interface{}{
		"profile":        flags.Profile,
		"token":          auth.MaskToken(strings.TrimSpace(token)),
		"storageBackend": mgr.GetStorageBackend(),
	})
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := newOutput(cmd)

	mgr := newAuthManager()
	if warning := mgr.GetStorageWarning(); warning != "" && flags.Verbose {
		out.Log("%s", warning)
	}
	return out.WriteSuccess("auth.status", mgr.Status(flags.Profile, flags.Token))
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := newOutput(cmd)

	mgr := newAuthManager()
	if _, err := mgr.LoadToken(flags.Profile); err != nil {
		return handleError(out, "auth.logout", nil, err)
	}
	if err := mgr.DeleteToken(flags.Profile); err != nil {
		return handleError(out, "auth.logout", nil, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInternalError,
			fmt.Sprintf("failed to remove token for profile '%s': %v", flags.Profile, err)).Build(), err))
	}

	out.Log("Token removed for profile: %s", flags.Profile)
	return out.WriteSuccess("auth.logout", map[string]interface{}{
		"profile": flags.Profile,
		"status":  "logged_out",
	})
}

func runAuthProfiles(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd)

	mgr := newAuthManager()
	profiles, err := mgr.ListProfiles()
	if err != nil {
		return handleError(out, "auth.profiles", nil, err)
	}
	return out.WriteSuccess("auth.profiles", map[string]interface{}{
		"profiles":       profiles,
		"storageBackend": mgr.GetStorageBackend(),
	})
}
