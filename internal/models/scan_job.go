package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobType identifies the kind of work a ScanJob performs
type JobType string

const (
	JobTypeSubdomainScan          JobType = "subdomain_scan"
	JobTypeLiveHostsScan          JobType = "live_hosts_scan"
	JobTypePortScan               JobType = "port_scan"
	JobTypeContentDiscovery       JobType = "content_discovery"
	JobTypeJSFilesScan            JobType = "js_files_scan"
	JobTypeAPIDiscovery           JobType = "api_discovery"
	JobTypeVulnerabilityScan      JobType = "vulnerability_scan"
	JobTypeFullScan               JobType = "full_scan"
	JobTypeComprehensiveBugBounty JobType = "comprehensive_bug_bounty"
)

// ValidJobTypes lists every accepted job type
var ValidJobTypes = []JobType{
	JobTypeSubdomainScan,
	JobTypeLiveHostsScan,
	JobTypePortScan,
	JobTypeContentDiscovery,
	JobTypeJSFilesScan,
	JobTypeAPIDiscovery,
	JobTypeVulnerabilityScan,
	JobTypeFullScan,
	JobTypeComprehensiveBugBounty,
}

// ConflictingJobTypes may have at most one pending/running job per target
var ConflictingJobTypes = []JobType{
	JobTypeSubdomainScan,
	JobTypeLiveHostsScan,
}

// IsValid reports whether t is a known job type
func (t JobType) IsValid() bool {
	for _, v := range ValidJobTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Conflicting reports whether t belongs to the single-in-flight conflict set
func (t JobType) Conflicting() bool {
	for _, v := range ConflictingJobTypes {
		if t == v {
			return true
		}
	}
	return false
}

// JobStatus is the scan job lifecycle state
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Priority orders jobs for the dashboard; it does not affect dispatch
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// JSON is an opaque JSON document stored as a jsonb column
type JSON map[string]interface{}

// Value implements driver.Valuer
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSON column: %T", value)
	}
	return json.Unmarshal(data, j)
}

// StringSlice is a list of strings stored as a jsonb column
type StringSlice []string

// Value implements driver.Valuer
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for string slice column: %T", value)
	}
	return json.Unmarshal(data, s)
}

// ScanJob is one unit of asynchronous scanning work bound to a target.
// Progress is monotonically non-decreasing while running; Results is set only
// on completed jobs and ErrorMessage only on failed ones.
type ScanJob struct {
	ID                 string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TargetID           string      `gorm:"index;type:varchar(36)" json:"target_id"`
	OrganizationID     string      `gorm:"index;type:varchar(36)" json:"organization_id"`
	CreatedBy          string      `gorm:"type:varchar(36)" json:"created_by"`
	JobType            JobType     `gorm:"type:varchar(32);index" json:"job_type"`
	ScanTypes          StringSlice `gorm:"type:jsonb" json:"scan_types"`
	Priority           Priority    `gorm:"type:varchar(16);default:medium" json:"priority"`
	Config             JSON        `gorm:"type:jsonb" json:"config"`
	Status             JobStatus   `gorm:"type:varchar(16);index;default:pending" json:"status"`
	ProgressPercentage int         `json:"progress_percentage"`
	Results            JSON        `gorm:"type:jsonb" json:"results"`
	ErrorMessage       string      `json:"error_message,omitempty"`
	StartedAt          *time.Time  `json:"started_at,omitempty"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Target is the domain under assessment. Stats is an aggregate blob merged
// after each completed scan.
type Target struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Domain         string     `gorm:"index" json:"domain"`
	OrganizationID string     `gorm:"index;type:varchar(36)" json:"organization_id"`
	Status         string     `gorm:"type:varchar(16);default:active" json:"status"`
	Stats          JSON       `gorm:"type:jsonb" json:"stats"`
	LastScanAt     *time.Time `json:"last_scan_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Subdomain is a discovered hostname under a target
type Subdomain struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TargetID   string    `gorm:"uniqueIndex:idx_target_subdomain;type:varchar(36)" json:"target_id"`
	Subdomain  string    `gorm:"uniqueIndex:idx_target_subdomain" json:"subdomain"`
	Status     string    `gorm:"type:varchar(16);default:discovered" json:"status"`
	IPAddress  string    `json:"ip_address,omitempty"`
	Title      string    `json:"title,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Port is an observed open port on a subdomain
type Port struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SubdomainID string    `gorm:"uniqueIndex:idx_sub_port_proto;type:varchar(36)" json:"subdomain_id"`
	Port        int       `gorm:"uniqueIndex:idx_sub_port_proto" json:"port"`
	Protocol    string    `gorm:"uniqueIndex:idx_sub_port_proto;type:varchar(8)" json:"protocol"`
	State       string    `gorm:"type:varchar(16)" json:"state"`
	Service     string    `json:"service,omitempty"`
	Version     string    `json:"version,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Directory is a discovered content path on a subdomain
type Directory struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SubdomainID string    `gorm:"uniqueIndex:idx_sub_path;type:varchar(36)" json:"subdomain_id"`
	Path        string    `gorm:"uniqueIndex:idx_sub_path" json:"path"`
	ContentType string    `gorm:"type:varchar(32)" json:"content_type"`
	Source      string    `gorm:"type:varchar(32)" json:"source,omitempty"`
	StatusCode  int       `json:"status_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Vulnerability is a recorded finding against a target
type Vulnerability struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TargetID    string    `gorm:"index;type:varchar(36)" json:"target_id"`
	Type        string    `gorm:"type:varchar(64)" json:"type"`
	Severity    string    `gorm:"type:varchar(16);index" json:"severity"`
	URL         string    `json:"url,omitempty"`
	Description string    `json:"description,omitempty"`
	Evidence    string    `json:"evidence,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
