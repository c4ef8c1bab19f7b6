// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Command dmrelay-client is a headless reference client for the relay,
// generalized out of the reference's ratatui UI (original_source's
// crates/client) into a scriptable CLI exercising the same session
// lifecycle: register, login, cold-start sync, live notifications, send.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmrelay/dmrelay/client/identity"
	"github.com/dmrelay/dmrelay/client/pipeline"
	"github.com/dmrelay/dmrelay/client/session"
	"github.com/dmrelay/dmrelay/client/store"
	"github.com/dmrelay/dmrelay/client/sync"
	"github.com/dmrelay/dmrelay/client/transport"
	"github.com/dmrelay/dmrelay/crypto/formats"
	"github.com/dmrelay/dmrelay/crypto/keys"
	"github.com/dmrelay/dmrelay/internal/logger"
)

var (
	serverURL string
	dataDir   string
)

var rootCmd = &cobra.Command{
	Use:   "dmrelay-client",
	Short: "dmrelay headless client - register, log in, and exchange end-to-end encrypted messages",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "https://localhost:8443/api", "relay base URL")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", ".", "directory holding the keypair and local store")

	rootCmd.AddCommand(registerCmd, listenCmd, sendCmd)
}

var registerCmd = &cobra.Command{
	Use:   "register <id> <display-name> <password>",
	Short: "create a new account and local keypair",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, name, password := args[0], args[1], args[2]

		kp, err := identity.LoadOrGenerateKeyPair(dataDir, id)
		if err != nil {
			return fmt.Errorf("generate keypair: %w", err)
		}
		pubDER, err := formats.EncodePublicKeyDER(kp.Public)
		if err != nil {
			return fmt.Errorf("encode public key: %w", err)
		}

		client, err := transport.New(serverURL)
		if err != nil {
			return err
		}
		ctx := context.Background()
		if err := client.CheckConnection(ctx); err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}
		if err := client.Register(ctx, id, name, password, pubDER); err != nil {
			return fmt.Errorf("register: %w", err)
		}

		fmt.Printf("registered %s\n", id)
		return nil
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen <id> <password>",
	Short: "log in, sync history, and stream live messages until interrupted",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, password := args[0], args[1]
		log := logger.NewDefaultLogger()

		client, st, kp, machine, err := openSession(context.Background(), id, password, log)
		if err != nil {
			return err
		}
		defer st.Close()

		loop := sync.New(id, kp.Private, client, st, machine, log)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			for msg := range loop.Delivered {
				fmt.Printf("[%s -> %s] %s: %s\n", msg.SenderID, msg.ReceiverID, msg.Timestamp, msg.Content)
			}
		}()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sig
			cancel()
		}()

		if err := loop.ColdStartSync(ctx); err != nil {
			return fmt.Errorf("cold-start sync: %w", err)
		}
		return loop.Reconnect(ctx)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <id> <password> <recipient> <message>",
	Short: "send a single end-to-end encrypted message",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, password, recipient, content := args[0], args[1], args[2], args[3]
		log := logger.NewDefaultLogger()

		client, st, kp, _, err := openSession(context.Background(), id, password, log)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()
		contact, ok, err := st.GetContact(recipient)
		if err != nil {
			return err
		}
		if !ok {
			profile, err := client.GetUser(ctx, recipient)
			if err != nil {
				return fmt.Errorf("look up recipient: %w", err)
			}
			contact = store.Contact{ID: profile.ID, DisplayName: profile.Name, PublicKey: profile.PublicKey}
			if err := st.CreateContact(contact); err != nil {
				return fmt.Errorf("save new contact: %w", err)
			}
		}
		recipientPub, err := formats.DecodePublicKeyDER(contact.PublicKey)
		if err != nil {
			return fmt.Errorf("decode recipient public key: %w", err)
		}

		sentCounter, receiveCounter := lastCounters(st, recipient)
		out, _, err := pipeline.PrepareSend(id, recipient, content, sentCounter+1, receiveCounter, kp.Public, recipientPub)
		if err != nil {
			return fmt.Errorf("prepare message: %w", err)
		}

		entry, err := client.SendMessage(ctx, recipient, out.Payload, out.SenderWrappedKey, out.RecipientWrappedKey)
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}

		verified, err := pipeline.VerifyOwnCopy(entry.Contents, out.SymmetricKey)
		if err != nil {
			return fmt.Errorf("verify echoed copy: %w", err)
		}

		if _, err := st.CreateMessage(store.Message{
			SenderID:       verified.SenderID,
			ReceiverID:     verified.ReceiverID,
			Timestamp:      verified.Timestamp,
			Content:        verified.Content,
			SymmetricKey:   out.SymmetricKey,
			SentCounter:    verified.SentCounter,
			ReceiveCounter: verified.ReceiveCounter,
			ServerID:       entry.ID,
		}); err != nil {
			return fmt.Errorf("persist sent message: %w", err)
		}

		fmt.Printf("sent message %d to %s\n", entry.ID, recipient)
		return nil
	},
}

// lastCounters returns the highest SentCounter/ReceiveCounter seen so far
// in the local conversation with contactID, mirroring app.rs's
// last_counters over the in-memory message list; an empty conversation
// yields (0, 0).
func lastCounters(st *store.Store, contactID string) (sentCounter, receiveCounter int64) {
	messages, err := st.ListMessagesByConversation(contactID)
	if err != nil {
		return 0, 0
	}
	for _, m := range messages {
		if m.SentCounter > sentCounter {
			sentCounter = m.SentCounter
		}
		if m.ReceiveCounter > receiveCounter {
			receiveCounter = m.ReceiveCounter
		}
	}
	return
}

// openSession logs in, loads the local keypair, and opens the local
// store, returning a machine already advanced to Authenticated (spec.md
// §4.5: "successful TCP/TLS handshake yields Connected; successful login
// yields Authenticated").
func openSession(ctx context.Context, id, password string, log logger.Logger) (*transport.Client, *store.Store, *keys.KeyPair, *session.Machine, error) {
	client, err := transport.New(serverURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	machine := session.NewMachine()
	if err := client.CheckConnection(ctx); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("server unreachable: %w", err)
	}
	if err := machine.Transition(session.Connected); err != nil {
		return nil, nil, nil, nil, err
	}

	if _, err := client.Login(ctx, id, password); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("login: %w", err)
	}
	if err := machine.Transition(session.Authenticated); err != nil {
		return nil, nil, nil, nil, err
	}

	kp, err := identity.LoadOrGenerateKeyPair(dataDir, id)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load keypair: %w", err)
	}

	st, err := store.Open(dataDir+"/"+id+".db", password)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open local store: %w", err)
	}

	return client, st, kp, machine, nil
}
