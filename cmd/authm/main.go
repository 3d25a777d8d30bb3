// authm manages users of the auth database from the command line.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/charleshuang3/authsession/internal/config"
	"github.com/charleshuang3/authsession/internal/gormw"
	"github.com/charleshuang3/authsession/internal/password"
	"github.com/charleshuang3/authsession/internal/storage"
	"github.com/charleshuang3/authsession/internal/types"
)

var (
	configPath = flag.String("c", os.Getenv("CONFIG_PATH"), "Path to configuration file")
)

const usage = `Usage: authm [-c config.yaml] <command> [flags]

Commands:
  seed                               create the demo user if the database has no users
  adduser -email -name -password     create a user
  deluser -email                     soft delete a user and end their sessions
  sweep                              remove expired refresh tokens now
`

const (
	seedName     = "Alice"
	seedEmail    = "alice@example.com"
	seedPassword = "Qwe1234#"
)

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if *configPath == "" {
		log.Fatal().Msg("Config path must be provided via CONFIG_PATH env var or -c flag")
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg := config.LoadConfig(*configPath)

	// Initialize database
	db, err := gormw.Open(&cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	hasher := password.NewBcrypt(bcrypt.DefaultCost)

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "seed":
		err = seed(db, hasher)
	case "adduser":
		err = addUser(db, hasher, args)
	case "deluser":
		err = delUser(db, args)
	case "sweep":
		storage.SweepExpiredRefreshTokens(db, nil)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", cmd).Msg("Command failed")
	}
}

func seed(db *gormw.DB, hasher password.Hasher) error {
	n, err := storage.CountUsers(db)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int64("users", n).Msg("Database already has users, skip seeding")
		return nil
	}
	return createUser(db, hasher, seedEmail, seedName, seedPassword)
}

func addUser(db *gormw.DB, hasher password.Hasher, args []string) error {
	fs := flag.NewFlagSet("adduser", flag.ExitOnError)
	email := fs.String("email", "", "Email of the user")
	name := fs.String("name", "", "Display name of the user")
	pw := fs.String("password", "", "Password of the user")
	fs.Parse(args)

	return createUser(db, hasher, *email, *name, *pw)
}

func createUser(db *gormw.DB, hasher password.Hasher, rawEmail, rawName, rawPassword string) error {
	email, err := types.ParseEmail(rawEmail)
	if err != nil {
		return err
	}
	name, err := types.ParseName(rawName)
	if err != nil {
		return err
	}
	pw, err := types.ParsePassword(rawPassword)
	if err != nil {
		return err
	}

	existing, err := storage.GetUserByEmail(db, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("user %s already exists", email)
	}

	hashed, err := hasher.Issue(pw)
	if err != nil {
		return err
	}

	user, err := storage.CreateUser(db, storage.NewUser{
		Email:          email,
		Name:           name,
		HashedPassword: hashed,
	})
	if err != nil {
		return err
	}

	log.Info().Str("id", user.ID).Str("email", user.Email).Msg("User created")
	return nil
}

func delUser(db *gormw.DB, args []string) error {
	fs := flag.NewFlagSet("deluser", flag.ExitOnError)
	rawEmail := fs.String("email", "", "Email of the user")
	fs.Parse(args)

	email, err := types.ParseEmail(*rawEmail)
	if err != nil {
		return err
	}

	user, err := storage.GetUserByEmail(db, email)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %s not found", email)
	}

	id, err := types.ParseUserID(user.ID)
	if err != nil {
		return err
	}
	if err := storage.SoftDeleteUser(db, id); err != nil {
		return err
	}
	n, err := storage.RemoveAllRefreshTokensByUser(db, id)
	if err != nil {
		return err
	}

	log.Info().Str("id", user.ID).Int64("sessions", n).Msg("User deleted")
	return nil
}
