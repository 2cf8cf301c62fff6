// Command advenduro-admin runs one-off maintenance tasks against the
// registration database:
//
//	advenduro-admin promote -email someone@example.com
//	advenduro-admin import-banned -file words.txt [-source words.txt]
package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/neadvenduro/advenduro/internal/config"
	"github.com/neadvenduro/advenduro/internal/database"
	"github.com/neadvenduro/advenduro/internal/logging"
	"github.com/neadvenduro/advenduro/internal/namefilter"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: advenduro-admin <promote|import-banned> [flags]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load application configuration")
	}
	if _, err := logging.Setup(cfg.Environment, cfg.LogLevel, ""); err != nil {
		logrus.WithError(err).Fatal("logging setup failed")
	}

	db, err := database.NewService(cfg.DbDriver, cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.InitSchema(ctx); err != nil {
		logrus.WithError(err).Fatal("failed to initialize database schema")
	}

	switch os.Args[1] {
	case "promote":
		err = promote(ctx, db, os.Args[2:])
	case "import-banned":
		err = importBanned(ctx, db, os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		logrus.WithError(err).Fatal(os.Args[1] + " failed")
	}
}

// promote grants the admin role to an existing account.
func promote(ctx context.Context, db *database.Service, args []string) error {
	fs := flag.NewFlagSet("promote", flag.ExitOnError)
	email := fs.String("email", "", "email of the account to promote")
	fs.Parse(args)
	if *email == "" {
		return fmt.Errorf("-email is required")
	}

	addr := strings.ToLower(strings.TrimSpace(*email))
	err := db.WriteTx(ctx, func(tx *sql.Tx) error {
		return db.SetUserRoleByEmail(ctx, tx, addr, database.UserRoleAdmin)
	})
	if err != nil {
		return fmt.Errorf("promote %s: %w", addr, err)
	}
	logrus.WithField("email", addr).Info("user promoted to admin")
	return nil
}

// importBanned loads a word list, one entry per line. Blank lines and lines
// starting with # are skipped.
func importBanned(ctx context.Context, db *database.Service, args []string) error {
	fs := flag.NewFlagSet("import-banned", flag.ExitOnError)
	file := fs.String("file", "", "word list to import (- for stdin)")
	source := fs.String("source", "", "source label stored with each row (defaults to the file name)")
	fs.Parse(args)
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	var r io.Reader = os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
		if *source == "" {
			*source = filepath.Base(*file)
		}
	}

	words, err := readWords(r)
	if err != nil {
		return err
	}

	n, err := namefilter.NewImporter(db).Import(ctx, words, *source)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d banned names\n", n)
	return nil
}

func readWords(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, sc.Err()
}
