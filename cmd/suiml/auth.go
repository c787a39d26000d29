package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"suiml.io/suiml/backend"
	"suiml.io/suiml/keys"
	"suiml.io/suiml/session"
	"suiml.io/suiml/sui"
)

func cmdAuth(e *env, args []string) int {
	if len(args) == 0 {
		printAuthUsage(e.errOut)
		return 2
	}
	switch args[0] {
	case "login":
		return cmdAuthLogin(e, args[1:])
	case "me":
		return cmdAuthMe(e, args[1:])
	case "init":
		return cmdAuthInit(e, args[1:])
	case "prove":
		return cmdAuthProve(e, args[1:])
	case "address":
		return cmdAuthAddress(e, args[1:])
	case "logout":
		return cmdAuthLogout(e, args[1:])
	case "help", "-h", "--help":
		printAuthUsage(e.out)
		return 0
	default:
		fmt.Fprintf(e.errOut, "unknown auth subcommand: %s\n\n", args[0])
		printAuthUsage(e.errOut)
		return 2
	}
}

func printAuthUsage(w io.Writer) {
	fmt.Fprintln(w, "suiml auth: backend session and zkLogin")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  suiml auth login --token <jwt>")
	fmt.Fprintln(w, "  suiml auth me")
	fmt.Fprintln(w, "  suiml auth init --nonce <nonce> [--max-epoch <n>] [--randomness <r>]")
	fmt.Fprintln(w, "  suiml auth prove --jwt <id-token>")
	fmt.Fprintln(w, "  suiml auth address [--address <0x...>]")
	fmt.Fprintln(w, "  suiml auth logout")
}

// loggedIn loads the session and a backend client carrying its token.
func (e *env) loggedIn() (*session.Store, *backend.Client, bool) {
	st, err := e.session()
	if err != nil {
		e.fail("session", err)
		return nil, nil, false
	}
	sess := st.Current()
	if !sess.LoggedIn(time.Now()) {
		fmt.Fprintln(e.errOut, "not logged in or session expired (run: suiml auth login --token <jwt>)")
		return nil, nil, false
	}
	return st, e.backend().WithToken(sess.Token), true
}

func cmdAuthLogin(e *env, args []string) int {
	fs := flag.NewFlagSet("auth login", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	token := fs.String("token", "", "Backend access token")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *token == "" {
		fmt.Fprintln(e.errOut, "missing --token")
		return 2
	}
	if (session.Session{Token: *token}).Expired(time.Now()) {
		fmt.Fprintln(e.errOut, "token is unreadable or expired")
		return 1
	}
	st, err := e.session()
	if err != nil {
		return e.fail("session", err)
	}
	if err := st.Update(func(s *session.Session) { s.Token = *token }); err != nil {
		return e.fail("save session", err)
	}
	fmt.Fprintf(e.out, "Session saved to %s\n", st.Path())
	return 0
}

func cmdAuthMe(e *env, args []string) int {
	fs := flag.NewFlagSet("auth me", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	_, client, ok := e.loggedIn()
	if !ok {
		return 1
	}
	user, err := client.Me(context.Background())
	if err != nil {
		return e.fail("me", err)
	}
	return e.printJSON(user)
}

// cmdAuthInit keeps an ephemeral key in the session and asks the backend
// for the OAuth URL bound to the caller's nonce.
func cmdAuthInit(e *env, args []string) int {
	fs := flag.NewFlagSet("auth init", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	nonce := fs.String("nonce", "", "zkLogin nonce computed from the ephemeral key")
	maxEpoch := fs.Uint64("max-epoch", 0, "Last epoch the ephemeral key is valid for")
	randomness := fs.String("randomness", "", "Randomness used for the nonce")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	st, err := e.session()
	if err != nil {
		return e.fail("session", err)
	}

	kp, err := st.Current().EphemeralKeypair()
	if err != nil {
		if kp, err = sui.NewKeypair(); err != nil {
			return e.fail("ephemeral key", err)
		}
	}
	exported, err := keys.ExportPrivateKey(kp.Seed())
	if err != nil {
		return e.fail("ephemeral key", err)
	}
	if err := st.Update(func(s *session.Session) {
		s.EphemeralSeed = exported
		if *maxEpoch > 0 {
			s.MaxEpoch = *maxEpoch
		}
		if *randomness != "" {
			s.Randomness = *randomness
		}
	}); err != nil {
		return e.fail("save session", err)
	}
	fmt.Fprintf(e.out, "Ephemeral public key: %s\n", kp.ExtendedPublicKey())
	if *nonce == "" {
		fmt.Fprintln(e.out, "Compute the nonce from this key, then rerun with --nonce")
		return 0
	}

	res, err := e.backend().ZkLoginInit(context.Background(), *nonce)
	if err != nil {
		return e.fail("zklogin init", err)
	}
	fmt.Fprintf(e.out, "Open: %s\n", res.OAuthURL)
	return 0
}

func cmdAuthProve(e *env, args []string) int {
	fs := flag.NewFlagSet("auth prove", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	idToken := fs.String("jwt", "", "OAuth id token returned by the provider")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *idToken == "" {
		fmt.Fprintln(e.errOut, "missing --jwt")
		return 2
	}
	st, err := e.session()
	if err != nil {
		return e.fail("session", err)
	}
	sess := st.Current()
	kp, err := sess.EphemeralKeypair()
	if err != nil {
		fmt.Fprintln(e.errOut, "no ephemeral key (run: suiml auth init)")
		return 1
	}
	client := e.backend()
	if sess.Token != "" {
		client = client.WithToken(sess.Token)
	}
	res, err := client.ZkLoginProve(context.Background(), backend.ProofRequest{
		JWTToken:           *idToken,
		EphemeralPublicKey: kp.ExtendedPublicKey(),
		MaxEpoch:           sess.MaxEpoch,
	})
	if err != nil {
		return e.fail("zklogin prove", err)
	}
	if !res.Success {
		fmt.Fprintln(e.errOut, "prover rejected the request")
		return 1
	}
	if err := st.Update(func(s *session.Session) {
		s.SuiAddress = res.SuiAddress
		s.UserSalt = res.UserSalt
	}); err != nil {
		return e.fail("save session", err)
	}
	fmt.Fprintf(e.out, "Sui address: %s\n", res.SuiAddress)
	return 0
}

func cmdAuthAddress(e *env, args []string) int {
	fs := flag.NewFlagSet("auth address", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	address := fs.String("address", "", "Address to register (defaults to the session's)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	st, client, ok := e.loggedIn()
	if !ok {
		return 1
	}
	addr := *address
	if addr == "" {
		addr = st.Current().SuiAddress
	}
	if _, err := sui.ParseAddress(addr); err != nil {
		fmt.Fprintf(e.errOut, "invalid address %q: %v\n", addr, err)
		return 2
	}
	res, err := client.UpdateSuiAddress(context.Background(), addr)
	if err != nil {
		return e.fail("update address", err)
	}
	if err := st.Update(func(s *session.Session) { s.SuiAddress = res.SuiAddress }); err != nil {
		return e.fail("save session", err)
	}
	fmt.Fprintf(e.out, "Registered: %s\n", res.SuiAddress)
	return 0
}

func cmdAuthLogout(e *env, args []string) int {
	fs := flag.NewFlagSet("auth logout", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	st, err := e.session()
	if err != nil {
		return e.fail("session", err)
	}
	if err := st.Clear(); err != nil {
		return e.fail("clear session", err)
	}
	fmt.Fprintln(e.out, "Logged out")
	return 0
}
