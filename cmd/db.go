package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tigerload/internal/config"
	"github.com/sells-group/tigerload/internal/db"
)

// connectPool opens the PostGIS pool described by the config, prompting for
// the password when none is configured.
func connectPool(ctx context.Context) (*pgxpool.Pool, error) {
	dbCfg := cfg.Database

	var password string
	if dbCfg.NeedsPassword() {
		fmt.Printf("Connecting to %s@%s:%d/%s\n", dbCfg.User, dbCfg.Host, dbCfg.Port, dbCfg.Name)
		pw, err := config.PromptPassword(os.Stdin, os.Stdout, "Database password: ")
		if err != nil {
			return nil, err
		}
		password = pw
	}

	pool, err := db.NewPool(ctx, dbCfg.DSN(password), &dbCfg.Pool)
	if err != nil {
		return nil, eris.Wrap(err, "tigerload: connect")
	}

	fmt.Println("Connected to database")
	return pool, nil
}
