package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qtc-project/pqnoise/pkg/identity"
)

// keysCmd manages the persistent server identity under the home directory.
func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the static identity keys",
	}
	cmd.AddCommand(keysShowCmd(), keysRotateCmd())
	return cmd
}

func withManager(fn func(*identity.Manager) error) error {
	store, err := identity.OpenStore(home)
	if err != nil {
		return err
	}
	defer store.Close()

	mgr, err := identity.NewManager(store)
	if err != nil {
		return err
	}
	return fn(mgr)
}

func keysShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the public keys, generating them on first run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *identity.Manager) error {
				kemPub, err := mgr.KEMPublicKey()
				if err != nil {
					return err
				}
				sigPub, err := mgr.SigPublicKey()
				if err != nil {
					return err
				}
				fmt.Printf("kem public: %s\n", hex.EncodeToString(kemPub.Bytes()))
				fmt.Printf("sig public: %s\n", hex.EncodeToString(sigPub.Bytes()))
				return nil
			})
		},
	}
}

func keysRotateCmd() *cobra.Command {
	var rotateSig bool

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Force a key rotation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *identity.Manager) error {
				if rotateSig {
					if err := mgr.RotateSig(); err != nil {
						return err
					}
					fmt.Println("signature key rotated")
					return nil
				}
				if err := mgr.RotateKEM(); err != nil {
					return err
				}
				fmt.Println("kem key rotated; previous key stays valid through the overlap window")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&rotateSig, "sig", false, "rotate the signature key instead of the KEM key")
	return cmd
}
