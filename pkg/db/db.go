package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
)

var DB *sql.DB

// DBType represents the database type
type DBType string

const (
	DBTypeSQLite   DBType = "sqlite"
	DBTypePostgres DBType = "postgres"
	DBTypeMariaDB  DBType = "mariadb"
	DBTypeMySQL    DBType = "mysql"
)

// Current database type
var currentDBType DBType = DBTypeSQLite

// DBConfig holds database configuration
type DBConfig struct {
	Type     DBType `json:"type"`     // sqlite, postgres, mariadb, mysql
	Host     string `json:"host"`     // Database host
	Port     int    `json:"port"`     // Database port
	Database string `json:"database"` // Database name
	Username string `json:"username"` // Database username
	Password string `json:"password"` // Database password
	SSLMode  string `json:"sslMode"`  // SSL mode (for postgres)
	Path     string `json:"path"`     // SQLite file path
}

// Init initializes an SQLite database at dbPath
func Init(dbPath string) error {
	return InitWithConfig(DBConfig{
		Type: DBTypeSQLite,
		Path: dbPath,
	})
}

// InitWithConfig initializes database with configuration
func InitWithConfig(cfg DBConfig) error {
	var db *sql.DB
	var err error

	currentDBType = cfg.Type
	if currentDBType == "" {
		currentDBType = DBTypeSQLite
	}

	switch currentDBType {
	case DBTypeSQLite:
		db, err = initSQLite(cfg.Path)
	case DBTypePostgres:
		db, err = initPostgres(cfg)
	case DBTypeMariaDB, DBTypeMySQL:
		db, err = initMySQL(cfg)
	default:
		return fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	DB = db
	return createTables()
}

func initSQLite(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	return db, nil
}

func initPostgres(cfg DBConfig) (*sql.DB, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.Username, cfg.Password, cfg.Database, sslMode)

	return sql.Open("postgres", dsn)
}

func initMySQL(cfg DBConfig) (*sql.DB, error) {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	// Format: user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, port, cfg.Database)

	return sql.Open("mysql", dsn)
}

// GetDBType returns the current database type
func GetDBType() DBType {
	return currentDBType
}

// rebind rewrites "?" placeholders to "$n" for postgres.
func rebind(query string) string {
	if currentDBType != DBTypePostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// userColumn quotes the reserved "user" column name where needed.
func userColumn() string {
	if currentDBType == DBTypePostgres {
		return `"user"`
	}
	return "user"
}

func createTables() error {
	// Migrate existing tables first
	if err := migrateAuditLogsTable(); err != nil {
		log.Warnf("audit_logs migration check failed: %v", err)
	}

	var auditQuery string
	switch currentDBType {
	case DBTypePostgres:
		auditQuery = `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id SERIAL PRIMARY KEY,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			"user" VARCHAR(255),
			action VARCHAR(255),
			resource VARCHAR(512),
			details TEXT,
			action_type VARCHAR(50) DEFAULT 'mutation',
			helix_cluster VARCHAR(255) DEFAULT '',
			helix_instance VARCHAR(255) DEFAULT '',
			dialog_result VARCHAR(20) DEFAULT '',
			source VARCHAR(50) DEFAULT '',
			client_ip VARCHAR(50) DEFAULT '',
			session_id VARCHAR(255) DEFAULT '',
			success BOOLEAN DEFAULT TRUE,
			error_msg TEXT DEFAULT ''
		);`
	case DBTypeMariaDB, DBTypeMySQL:
		auditQuery = `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			user VARCHAR(255),
			action VARCHAR(255),
			resource VARCHAR(512),
			details TEXT,
			action_type VARCHAR(50) DEFAULT 'mutation',
			helix_cluster VARCHAR(255) DEFAULT '',
			helix_instance VARCHAR(255) DEFAULT '',
			dialog_result VARCHAR(20) DEFAULT '',
			source VARCHAR(50) DEFAULT '',
			client_ip VARCHAR(50) DEFAULT '',
			session_id VARCHAR(255) DEFAULT '',
			success TINYINT(1) DEFAULT 1,
			error_msg TEXT
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	default: // SQLite
		auditQuery = `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			user TEXT,
			action TEXT,
			resource TEXT,
			details TEXT,
			action_type TEXT DEFAULT 'mutation',
			helix_cluster TEXT DEFAULT '',
			helix_instance TEXT DEFAULT '',
			dialog_result TEXT DEFAULT '',
			source TEXT DEFAULT '',
			client_ip TEXT DEFAULT '',
			session_id TEXT DEFAULT '',
			success INTEGER DEFAULT 1,
			error_msg TEXT DEFAULT ''
		);`
	}
	if _, err := DB.Exec(auditQuery); err != nil {
		return fmt.Errorf("failed to create audit_logs table: %w", err)
	}

	for _, q := range getIndexQueries() {
		if _, err := DB.Exec(q); err != nil {
			// MySQL has no IF NOT EXISTS for indexes; duplicates are expected on restart
			log.Debugf("index: %v", err)
		}
	}

	return nil
}

func getIndexQueries() []string {
	switch currentDBType {
	case DBTypePostgres:
		return []string{
			"CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_logs(timestamp DESC);",
			"CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_logs(\"user\");",
			"CREATE INDEX IF NOT EXISTS idx_audit_cluster ON audit_logs(helix_cluster);",
		}
	case DBTypeMariaDB, DBTypeMySQL:
		return []string{
			"CREATE INDEX idx_audit_timestamp ON audit_logs(timestamp DESC);",
			"CREATE INDEX idx_audit_user ON audit_logs(user);",
			"CREATE INDEX idx_audit_cluster ON audit_logs(helix_cluster);",
		}
	default:
		return []string{
			"CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_logs(timestamp DESC);",
			"CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_logs(user);",
			"CREATE INDEX IF NOT EXISTS idx_audit_cluster ON audit_logs(helix_cluster);",
		}
	}
}

func Close() error {
	if DB != nil {
		err := DB.Close()
		DB = nil
		return err
	}
	return nil
}

// migrateAuditLogsTable adds missing columns to existing audit_logs table
func migrateAuditLogsTable() error {
	if DB == nil {
		return nil
	}

	rows, err := DB.Query("SELECT * FROM audit_logs LIMIT 0")
	if err != nil {
		// Table doesn't exist, will be created fresh
		return nil
	}
	columns, err := rows.Columns()
	rows.Close()
	if err != nil {
		return err
	}

	existingCols := make(map[string]bool)
	for _, col := range columns {
		existingCols[col] = true
	}

	newColumns := []struct {
		name        string
		sqliteDef   string
		postgresDef string
		mysqlDef    string
	}{
		{"action_type", "TEXT DEFAULT 'mutation'", "VARCHAR(50) DEFAULT 'mutation'", "VARCHAR(50) DEFAULT 'mutation'"},
		{"helix_cluster", "TEXT DEFAULT ''", "VARCHAR(255) DEFAULT ''", "VARCHAR(255) DEFAULT ''"},
		{"helix_instance", "TEXT DEFAULT ''", "VARCHAR(255) DEFAULT ''", "VARCHAR(255) DEFAULT ''"},
		{"dialog_result", "TEXT DEFAULT ''", "VARCHAR(20) DEFAULT ''", "VARCHAR(20) DEFAULT ''"},
		{"source", "TEXT DEFAULT ''", "VARCHAR(50) DEFAULT ''", "VARCHAR(50) DEFAULT ''"},
		{"client_ip", "TEXT DEFAULT ''", "VARCHAR(50) DEFAULT ''", "VARCHAR(50) DEFAULT ''"},
		{"session_id", "TEXT DEFAULT ''", "VARCHAR(255) DEFAULT ''", "VARCHAR(255) DEFAULT ''"},
		{"success", "INTEGER DEFAULT 1", "BOOLEAN DEFAULT TRUE", "TINYINT(1) DEFAULT 1"},
		{"error_msg", "TEXT DEFAULT ''", "TEXT DEFAULT ''", "TEXT"},
	}

	for _, col := range newColumns {
		if existingCols[col.name] {
			continue
		}

		var colDef string
		switch currentDBType {
		case DBTypePostgres:
			colDef = col.postgresDef
		case DBTypeMariaDB, DBTypeMySQL:
			colDef = col.mysqlDef
		default:
			colDef = col.sqliteDef
		}

		query := fmt.Sprintf("ALTER TABLE audit_logs ADD COLUMN %s %s", col.name, colDef)
		if _, err := DB.Exec(query); err != nil {
			log.Warnf("could not add column %s: %v", col.name, err)
		}
	}

	return nil
}
