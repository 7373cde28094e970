// Command keygen prints a fresh master key for TWOFACTOR_ENCRYPTION_KEY.
//
//	keygen            # one base64 key
//	keygen -env       # TWOFACTOR_ENCRYPTION_KEY=<key>, ready for a .env file
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/campusmind/twofactor/pkg/secrets"
)

func main() {
	asEnv := flag.Bool("env", false, "print as an environment variable assignment")
	flag.Parse()

	if err := run(os.Stdout, *asEnv); err != nil {
		fmt.Fprintln(os.Stderr, "keygen:", err)
		os.Exit(1)
	}
}

func run(w io.Writer, asEnv bool) error {
	key, err := secrets.GenerateKey()
	if err != nil {
		return err
	}
	encoded := secrets.EncodeKey(key)
	if asEnv {
		_, err = fmt.Fprintf(w, "TWOFACTOR_ENCRYPTION_KEY=%s\n", encoded)
		return err
	}
	_, err = fmt.Fprintln(w, encoded)
	return err
}
