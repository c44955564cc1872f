package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ActionType categorizes the type of action
type ActionType string

const (
	ActionTypeView     ActionType = "view"     // Read-only operations (excluded from audit by default)
	ActionTypeMutation ActionType = "mutation" // Create, update, delete, command
	ActionTypeAuth     ActionType = "auth"     // Authentication related
	ActionTypeConfig   ActionType = "config"   // Cluster or console configuration changes
)

// AuditEntry represents a single audit log entry
type AuditEntry struct {
	User       string     `json:"user"`        // Console user
	Action     string     `json:"action"`      // delete_cluster, enable_instance, ...
	Resource   string     `json:"resource"`    // cluster/c1, cluster/c1/instance/node1
	Details    string     `json:"details"`     // Human-readable description
	ActionType ActionType `json:"action_type"` // Category of action

	// Helix target
	HelixCluster  string `json:"helix_cluster,omitempty"`
	HelixInstance string `json:"helix_instance,omitempty"`

	// DialogResult is the confirmation outcome: true, false or undefined
	DialogResult string `json:"dialog_result,omitempty"`

	// Source tracking
	Source    string `json:"source"` // "web", "api", "cli"
	ClientIP  string `json:"client_ip,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// Result
	Success  bool   `json:"success"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

// AuditRecord is a stored audit entry.
type AuditRecord struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	AuditEntry
}

// AuditConfig controls audit behavior
type AuditConfig struct {
	IncludeViews bool   // Include view/read operations (default: false)
	FileLogPath  string // Path to .audit file (empty = disabled)
}

var (
	auditConfig = AuditConfig{
		IncludeViews: false,
		FileLogPath:  "",
	}
	auditFileMu sync.Mutex
	auditFile   *os.File
)

// InitAuditFile initializes the file-based audit log
func InitAuditFile(path string) error {
	if path == "" {
		return fmt.Errorf("audit file path is empty")
	}

	auditConfig.FileLogPath = path

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	auditFileMu.Lock()
	auditFile = f
	auditFileMu.Unlock()
	return nil
}

// CloseAuditFile closes the audit file
func CloseAuditFile() {
	auditFileMu.Lock()
	defer auditFileMu.Unlock()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// SetAuditConfig updates audit configuration
func SetAuditConfig(cfg AuditConfig) {
	auditConfig = cfg
}

// RecordAudit records an audit entry to both database and file
func RecordAudit(entry AuditEntry) error {
	if entry.ActionType == ActionTypeView && !auditConfig.IncludeViews {
		return nil
	}

	if entry.ActionType == "" {
		entry.ActionType = ActionTypeMutation
	}

	// Default success to true unless error is set
	if entry.ErrorMsg == "" {
		entry.Success = true
	}

	now := time.Now().UTC()

	if DB != nil {
		query := rebind(`INSERT INTO audit_logs (
			timestamp, ` + userColumn() + `, action, resource, details, action_type,
			helix_cluster, helix_instance, dialog_result,
			source, client_ip, session_id, success, error_msg
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

		_, err := DB.Exec(query, now,
			entry.User, entry.Action, entry.Resource, entry.Details, string(entry.ActionType),
			entry.HelixCluster, entry.HelixInstance, entry.DialogResult,
			entry.Source, entry.ClientIP, entry.SessionID, entry.Success, entry.ErrorMsg)
		if err != nil {
			return err
		}
	}

	auditFileMu.Lock()
	defer auditFileMu.Unlock()
	if auditFile != nil {
		if _, err := auditFile.WriteString(formatAuditLogLine(now, entry) + "\n"); err != nil {
			return err
		}
	}

	return nil
}

// formatAuditLogLine creates a human-readable audit log line
func formatAuditLogLine(ts time.Time, entry AuditEntry) string {
	// Format: TIMESTAMP | USER | ACTION | RESOURCE | DETAILS | [CONFIRM: RESULT]
	base := fmt.Sprintf("%s | %-20s | %-22s | %-40s | %s",
		ts.Format("2006-01-02 15:04:05"),
		truncate(entry.User, 20),
		entry.Action,
		truncate(entry.Resource, 40),
		entry.Details)

	if entry.DialogResult != "" {
		base += fmt.Sprintf(" | [CONFIRM: %s]", entry.DialogResult)
	}

	if entry.ErrorMsg != "" {
		base += fmt.Sprintf(" | ERROR: %s", entry.ErrorMsg)
	}

	return base
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// GetAuditLogs retrieves the 100 most recent audit logs
func GetAuditLogs() ([]AuditRecord, error) {
	return GetAuditLogsFiltered(AuditFilter{Limit: 100})
}

// AuditFilter specifies filter criteria for audit log queries
type AuditFilter struct {
	Limit        int
	User         string
	Action       string
	ActionType   ActionType
	Resource     string
	HelixCluster string
	Source       string
	OnlyErrors   bool
	Since        time.Time
}

// GetAuditLogsFiltered retrieves audit logs with filters, newest first
func GetAuditLogsFiltered(filter AuditFilter) ([]AuditRecord, error) {
	if DB == nil {
		return nil, nil
	}

	query := `SELECT id, timestamp, ` + userColumn() + `, action, resource, details, action_type,
		helix_cluster, helix_instance, dialog_result,
		source, client_ip, session_id, success, error_msg
		FROM audit_logs WHERE 1=1`

	var args []interface{}

	if filter.User != "" {
		query += " AND " + userColumn() + " = ?"
		args = append(args, filter.User)
	}
	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, filter.Action)
	}
	if filter.ActionType != "" {
		query += " AND action_type = ?"
		args = append(args, string(filter.ActionType))
	}
	if filter.Resource != "" {
		query += " AND resource LIKE ?"
		args = append(args, "%"+filter.Resource+"%")
	}
	if filter.HelixCluster != "" {
		query += " AND helix_cluster = ?"
		args = append(args, filter.HelixCluster)
	}
	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}
	if filter.OnlyErrors {
		query += " AND success = ?"
		args = append(args, false)
	}
	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.UTC())
	}

	query += " ORDER BY timestamp DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := DB.Query(rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditRecord
	for rows.Next() {
		var r AuditRecord
		var actionType string
		var details, clientIP, sessionID, errorMsg, dialogResult, helixCluster, helixInstance, source *string

		if err := rows.Scan(&r.ID, &r.Timestamp, &r.User, &r.Action, &r.Resource, &details, &actionType,
			&helixCluster, &helixInstance, &dialogResult,
			&source, &clientIP, &sessionID, &r.Success, &errorMsg); err != nil {
			return nil, err
		}
		r.ActionType = ActionType(actionType)
		r.Details = deref(details)
		r.HelixCluster = deref(helixCluster)
		r.HelixInstance = deref(helixInstance)
		r.DialogResult = deref(dialogResult)
		r.Source = deref(source)
		r.ClientIP = deref(clientIP)
		r.SessionID = deref(sessionID)
		r.ErrorMsg = deref(errorMsg)

		logs = append(logs, r)
	}
	return logs, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// PurgeAuditLogs deletes entries older than before and returns how many went.
func PurgeAuditLogs(ctx context.Context, before time.Time) (int64, error) {
	if DB == nil {
		return 0, nil
	}
	res, err := DB.ExecContext(ctx, rebind("DELETE FROM audit_logs WHERE timestamp < ?"), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge audit logs: %w", err)
	}
	return res.RowsAffected()
}

// FormatAuditFilter renders a filter for log messages.
func FormatAuditFilter(f AuditFilter) string {
	var parts []string
	if f.User != "" {
		parts = append(parts, "user="+f.User)
	}
	if f.HelixCluster != "" {
		parts = append(parts, "cluster="+f.HelixCluster)
	}
	if f.Action != "" {
		parts = append(parts, "action="+f.Action)
	}
	if f.OnlyErrors {
		parts = append(parts, "errors")
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, ",")
}
