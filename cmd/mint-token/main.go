// mint-token signs a token for the authorization gate and optionally asks a
// running gate for its decision on it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/m-lab/access/token"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/logx"
	"github.com/m-lab/go/pretty"
	"github.com/m-lab/go/rtx"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/m-lab/authgate/client"
	"github.com/m-lab/authgate/static"
)

var (
	privKey      flagx.FileBytes
	subject      string
	issuer       string
	audience     flagx.StringArray
	expiry       time.Duration
	authorizeURL string
	timeout      time.Duration

	output    io.Writer = os.Stdout
	logFatalf           = log.Fatalf
)

func init() {
	setupFlags()
}

func setupFlags() {
	flag.Var(&privKey, "signer-key", "Private JWK file used for signing")
	flag.StringVar(&subject, "subject", "", "Subject of the token")
	flag.StringVar(&issuer, "issuer", "", "Issuer of the token")
	flag.Var(&audience, "audience", "Audience of the token; may be repeated")
	flag.DurationVar(&expiry, "expiry", static.MintTokenExpiry, "Lifetime of the token")
	flag.StringVar(&authorizeURL, "authorize-url", "", "If set, request a decision for the token from this gate URL")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Complete the authorize request within timeout")
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnvWithLog(flag.CommandLine, false), "Failed to read args from env")
	if subject == "" {
		logFatalf("ERROR: -subject is required")
		return
	}

	// NOTE: the gate MUST be configured with the corresponding public key to
	// verify these tokens.
	priv, err := token.NewSigner(privKey)
	rtx.Must(err, "Failed to allocate signer")

	now := time.Now()
	cl := jwt.Claims{
		Issuer:   issuer,
		Subject:  subject,
		Audience: jwt.Audience(audience),
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(expiry)),
	}
	logx.Debug.Println(cl)
	tok, err := priv.Sign(cl)
	rtx.Must(err, "Failed to sign claims")
	fmt.Fprintln(output, tok)

	if authorizeURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logx.Debug.Println("Issue request to:", authorizeURL)
	d, status, err := client.Authorize(ctx, authorizeURL, tok)
	if err != nil {
		logFatalf("ERROR: authorize request failed: %v", err)
		return
	}
	fmt.Fprintln(output, status, d.Effect())
	fmt.Fprintln(output, pretty.Sprint(d))
}
