package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func registerCmd(a *app) *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := a.client.Register(cmd.Context(), username, email, password)
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Account name")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func loginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and cache the session credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := a.client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := a.store.SetCredential(cred.Token, cred.Username); err != nil {
				return fmt.Errorf("failed to cache credential: %w", err)
			}
			// Refresh the zone cache for the new account.
			if _, err := a.zones.Load(cmd.Context()); err != nil {
				fmt.Println("Logged in, but zones could not be loaded:", err)
			}
			fmt.Printf("Logged in as %s\n", cred.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.ClearCredential(); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.client.CurrentUser(cmd.Context())
			if err != nil {
				if cached := a.store.Username(); cached != "" {
					fmt.Printf("%s (cached; backend said: %v)\n", cached, err)
					return nil
				}
				return err
			}
			fmt.Println(name)
			return nil
		},
	}
}

func profilesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List accounts known to the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := a.client.Profiles(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range profiles {
				marker := " "
				if p.IsCurrent {
					marker = "*"
				}
				fmt.Printf("%s %-20s %-30s %s\n", marker, p.Username, p.Email, p.Status)
			}
			return nil
		},
	}
}
