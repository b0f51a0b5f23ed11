package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

const defaultAPI = "http://localhost:8080/api"

// app carries the state shared by every subcommand.
type app struct {
	api      string
	sessPath string
	sess     *session
	client   *client
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "payments",
		Short:         "Operator CLI for the payments portal API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open()
		},
	}

	api := os.Getenv("PAYMENTS_API")
	if api == "" {
		api = defaultAPI
	}
	root.PersistentFlags().StringVar(&a.api, "api", api, "API base URL (env PAYMENTS_API)")

	root.AddCommand(
		seedAdminCmd(),
		csrfCmd(a),
		loginCmd(a),
		logoutCmd(a),
		queueCmd(a),
		verifyCmd(a),
		submitCmd(a),
	)
	return root
}

func (a *app) open() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	sess, err := loadSession(path)
	if err != nil {
		return err
	}
	// Tokens are bound to the server that issued them.
	if sess.API != "" && sess.API != a.api {
		sess = &session{Cookies: map[string]string{}}
	}
	sess.API = a.api
	a.sessPath, a.sess = path, sess
	a.client = newClient(a.api, sess)
	return nil
}

func (a *app) save() error {
	return a.sess.save(a.sessPath)
}
