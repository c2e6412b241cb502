package commands

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qtc-project/pqnoise/pkg/crypto"
	"github.com/qtc-project/pqnoise/pkg/identity"
	"github.com/qtc-project/pqnoise/pkg/metrics"
	"github.com/qtc-project/pqnoise/pkg/noise"
)

// demoCmd runs a client and server in-process over a pipe: handshake, a few
// records each way, a forced rekey, then a metrics dump.
func demoCmd() *cobra.Command {
	var rounds int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run an in-process client/server exchange",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := metrics.NewLogger(logLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			collector := metrics.NewCollector()

			mgr := identity.NewEphemeralManager()
			serverKeys, err := mgr.KEMKeys()
			if err != nil {
				return err
			}
			serverPub, err := mgr.KEMPublicKey()
			if err != nil {
				return err
			}
			signKey, err := mgr.SigningKey()
			if err != nil {
				return err
			}
			sigPub, err := mgr.SigPublicKey()
			if err != nil {
				return err
			}

			clientEnd, serverEnd := net.Pipe()
			defer clientEnd.Close()
			defer serverEnd.Close()

			serverErr := make(chan error, 1)
			go func() {
				serverErr <- runEchoServer(serverEnd, noise.Config{
					StaticKEMKeys: serverKeys,
					SigningKey:    signKey,
					Metrics: metrics.NewSessionObserver(metrics.ObserverConfig{
						Collector: collector,
						Logger:    logger,
						Role:      "server",
					}),
				}, rounds)
			}()

			client, err := noise.Client(clientEnd, noise.Config{
				PeerKEMPublicKey: serverPub,
				PeerSigPublicKey: sigPub,
				Metrics: metrics.NewSessionObserver(metrics.ObserverConfig{
					Collector: collector,
					Logger:    logger,
					Role:      "client",
				}),
			})
			if err != nil {
				return err
			}
			defer client.Close()

			// Tiny byte threshold so the demo exercises a rekey mid-run.
			client.SetRekeyPolicy(noise.RekeyPolicy{ByteThreshold: 64, TimeThreshold: time.Hour})

			for i := 0; i < rounds; i++ {
				msg := fmt.Sprintf("ping %d", i)
				if err := client.Send([]byte(msg)); err != nil {
					return err
				}
				reply, err := client.Receive()
				if err != nil {
					return err
				}
				logger.Info("round trip", zap.String("sent", msg), zap.ByteString("received", reply))
			}

			if err := <-serverErr; err != nil {
				return err
			}

			snap := collector.Snapshot()
			fmt.Printf("suite:       %s\n", client.Session().Suite())
			fmt.Printf("handshakes:  %d attempted, %d succeeded\n", snap.HandshakesAttempted, snap.HandshakesSucceeded)
			fmt.Printf("rekeys:      %d\n", snap.RekeysPerformed)
			fmt.Printf("bytes:       %d encrypted, %d decrypted\n", snap.BytesEncrypted, snap.BytesDecrypted)
			return nil
		},
	}

	cmd.Flags().IntVar(&rounds, "rounds", 8, "number of echo round trips")
	return cmd
}

// runEchoServer accepts one connection worth of traffic and echoes it back.
func runEchoServer(rw net.Conn, cfg noise.Config, rounds int) error {
	server, err := noise.Server(rw, cfg)
	if err != nil {
		return err
	}
	defer server.Close()

	for i := 0; i < rounds; i++ {
		data, err := server.Receive()
		if err != nil {
			return err
		}
		if err := server.Send(data); err != nil {
			return err
		}
	}
	return nil
}

// selftestCmd runs the cryptographic self tests.
func selftestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Run cryptographic self tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := crypto.RunSelfTest()
			if !result.Passed {
				return fmt.Errorf("self test failed: %v", result.Errors)
			}
			fmt.Println("all self tests passed")
			return nil
		},
	}
}
