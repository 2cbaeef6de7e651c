package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blocklords/authdeploy/config"
	"github.com/blocklords/authdeploy/log"
	_ "github.com/go-sql-driver/mysql"
)

// Any configuration time can not be greater than this
const TIMEOUT_CAP = 3600

// DatabaseParameters of the connection
type DatabaseParameters struct {
	hostname string
	port     string
	name     string
	username string
	password string
	timeout  time.Duration
}

// The configuration parameters
// The values are the default values if it wasn't provided by the user
// Set the default value to nil, if the parameter is required from the user
var DatabaseConfigurations = config.DefaultConfig{
	Title: "Database",
	Parameters: map[string]interface{}{
		"DEPLOYER_DATABASE_ENABLED":  false,
		"DEPLOYER_DATABASE_HOST":     "localhost",
		"DEPLOYER_DATABASE_PORT":     "3306",
		"DEPLOYER_DATABASE_NAME":     "deployer",
		"DEPLOYER_DATABASE_TIMEOUT":  uint64(10),
		"DEPLOYER_DATABASE_USERNAME": "root",
		"DEPLOYER_DATABASE_PASSWORD": nil,
	},
}

// Database parameters fetched from the environment variables.
//
// The `appConfig` keeps the default variables if the parameters were not set.
func GetParameters(appConfig *config.Config) (*DatabaseParameters, error) {
	timeout := appConfig.GetUint64("DEPLOYER_DATABASE_TIMEOUT")
	if timeout > TIMEOUT_CAP {
		return nil, fmt.Errorf("'DEPLOYER_DATABASE_TIMEOUT' can not be greater than %d (seconds)", TIMEOUT_CAP)
	} else if timeout == 0 {
		return nil, errors.New("the 'DEPLOYER_DATABASE_TIMEOUT' can not be zero")
	}
	if !appConfig.Exist("DEPLOYER_DATABASE_PASSWORD") {
		return nil, errors.New("missing 'DEPLOYER_DATABASE_PASSWORD'")
	}

	return &DatabaseParameters{
		hostname: appConfig.GetString("DEPLOYER_DATABASE_HOST"),
		port:     appConfig.GetString("DEPLOYER_DATABASE_PORT"),
		name:     appConfig.GetString("DEPLOYER_DATABASE_NAME"),
		username: appConfig.GetString("DEPLOYER_DATABASE_USERNAME"),
		password: appConfig.GetString("DEPLOYER_DATABASE_PASSWORD"),
		timeout:  time.Duration(timeout) * time.Second,
	}, nil
}

// Database keeps the connection to the mysql server
type Database struct {
	connection      *sql.DB
	connectionMutex sync.Mutex
	parameters      DatabaseParameters
	logger          *log.Logger
}

// Connect to the database. Waits until the database is ready or the timeout expires.
func Connect(ctx context.Context, parameters *DatabaseParameters, parent *log.Logger) (*Database, error) {
	db := &Database{
		parameters: *parameters,
		logger:     parent.Child("database", "database", parameters.name),
	}

	if err := db.connect(ctx); err != nil {
		return nil, fmt.Errorf("database.connect: %w", err)
	}
	return db, nil
}

func (db *Database) connect(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, db.parameters.timeout)
	defer cancel()

	db.logger.Info("connecting",
		"host", db.parameters.hostname,
		"port", db.parameters.port,
		"user", db.parameters.username,
		"timeout", db.parameters.timeout,
	)

	dsn := fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?timeout=%s&parseTime=true",
		db.parameters.username,
		db.parameters.password,
		db.parameters.hostname,
		db.parameters.port,
		db.parameters.name,
		db.parameters.timeout.String(),
	)

	connection, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}

	// wait until the database is ready or timeout expires
	for {
		err = connection.PingContext(ctx)
		if err == nil {
			break
		}
		select {
		case <-time.After(500 * time.Millisecond):
			continue
		case <-ctx.Done():
			_ = connection.Close()
			return fmt.Errorf("database ping error: %w", err)
		}
	}

	db.connectionMutex.Lock()
	db.connection = connection
	db.connectionMutex.Unlock()

	db.logger.Info("connection success!")

	return nil
}

// Close the connection
func (db *Database) Close() error {
	/* */ db.connectionMutex.Lock()
	defer db.connectionMutex.Unlock()

	if db.connection != nil {
		if err := db.connection.Close(); err != nil {
			return fmt.Errorf("connection.Close: %w", err)
		}
		db.connection = nil
	}

	return nil
}

// Exec the statement that returns no rows
func (db *Database) Exec(ctx context.Context, query string, arguments ...interface{}) (sql.Result, error) {
	db.connectionMutex.Lock()
	defer db.connectionMutex.Unlock()

	if db.connection == nil {
		return nil, errors.New("database is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, db.parameters.timeout)
	defer cancel()

	result, err := db.connection.ExecContext(ctx, query, arguments...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute '%q' query with arguments %v: %w", query, arguments, err)
	}
	return result, nil
}

// QueryRow scans the single row into the destination
func (db *Database) QueryRow(ctx context.Context, query string, arguments []interface{}, dest ...interface{}) error {
	db.connectionMutex.Lock()
	defer db.connectionMutex.Unlock()

	if db.connection == nil {
		return errors.New("database is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, db.parameters.timeout)
	defer cancel()

	if err := db.connection.QueryRowContext(ctx, query, arguments...).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("failed to scan '%q' query with arguments %v: %w", query, arguments, err)
	}
	return nil
}
