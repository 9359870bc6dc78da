package dao

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
)

// SubdomainDAO stores discovered hostnames, upserting on (target_id, subdomain)
type SubdomainDAO interface {
	BulkUpsert(subdomains []models.Subdomain) error
	FindByTarget(targetID string) ([]models.Subdomain, error)
	UpdateLiveness(id string, attrs map[string]interface{}) error
}

type subdomainDAO struct {
	db *gorm.DB
}

func NewSubdomainDAO(db *gorm.DB) SubdomainDAO {
	return &subdomainDAO{db: db}
}

func (dao *subdomainDAO) BulkUpsert(subdomains []models.Subdomain) error {
	if len(subdomains) == 0 {
		return nil
	}
	for i := range subdomains {
		if subdomains[i].ID == "" {
			subdomains[i].ID = uuid.New().String()
		}
	}
	return dao.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "target_id"}, {Name: "subdomain"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "ip_address", "title", "http_status", "updated_at"}),
	}).Create(&subdomains).Error
}

func (dao *subdomainDAO) FindByTarget(targetID string) ([]models.Subdomain, error) {
	var subdomains []models.Subdomain
	err := dao.db.Where("target_id = ?", targetID).Order("subdomain asc").Find(&subdomains).Error
	return subdomains, err
}

func (dao *subdomainDAO) UpdateLiveness(id string, attrs map[string]interface{}) error {
	return dao.db.Model(&models.Subdomain{}).Where("id = ?", id).Updates(attrs).Error
}

// PortDAO stores scanned ports, upserting on (subdomain_id, port, protocol)
type PortDAO interface {
	BulkUpsert(ports []models.Port) error
	FindBySubdomain(subdomainID string) ([]models.Port, error)
}

type portDAO struct {
	db *gorm.DB
}

func NewPortDAO(db *gorm.DB) PortDAO {
	return &portDAO{db: db}
}

func (dao *portDAO) BulkUpsert(ports []models.Port) error {
	if len(ports) == 0 {
		return nil
	}
	for i := range ports {
		if ports[i].ID == "" {
			ports[i].ID = uuid.New().String()
		}
	}
	return dao.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subdomain_id"}, {Name: "port"}, {Name: "protocol"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "service", "version", "updated_at"}),
	}).Create(&ports).Error
}

func (dao *portDAO) FindBySubdomain(subdomainID string) ([]models.Port, error) {
	var ports []models.Port
	err := dao.db.Where("subdomain_id = ?", subdomainID).Order("port asc").Find(&ports).Error
	return ports, err
}

// DirectoryDAO stores discovered content paths, upserting on (subdomain_id, path)
type DirectoryDAO interface {
	BulkUpsert(directories []models.Directory) error
	FindBySubdomain(subdomainID string) ([]models.Directory, error)
}

type directoryDAO struct {
	db *gorm.DB
}

func NewDirectoryDAO(db *gorm.DB) DirectoryDAO {
	return &directoryDAO{db: db}
}

func (dao *directoryDAO) BulkUpsert(directories []models.Directory) error {
	if len(directories) == 0 {
		return nil
	}
	for i := range directories {
		if directories[i].ID == "" {
			directories[i].ID = uuid.New().String()
		}
	}
	return dao.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subdomain_id"}, {Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_type", "source", "status_code", "updated_at"}),
	}).Create(&directories).Error
}

func (dao *directoryDAO) FindBySubdomain(subdomainID string) ([]models.Directory, error) {
	var directories []models.Directory
	err := dao.db.Where("subdomain_id = ?", subdomainID).Find(&directories).Error
	return directories, err
}

// VulnerabilityDAO stores recorded findings
type VulnerabilityDAO interface {
	BulkCreate(vulnerabilities []models.Vulnerability) error
	CountByTargetAndSeverity(targetID, severity string) (int64, error)
}

type vulnerabilityDAO struct {
	db *gorm.DB
}

func NewVulnerabilityDAO(db *gorm.DB) VulnerabilityDAO {
	return &vulnerabilityDAO{db: db}
}

func (dao *vulnerabilityDAO) BulkCreate(vulnerabilities []models.Vulnerability) error {
	if len(vulnerabilities) == 0 {
		return nil
	}
	for i := range vulnerabilities {
		if vulnerabilities[i].ID == "" {
			vulnerabilities[i].ID = uuid.New().String()
		}
	}
	return dao.db.Create(&vulnerabilities).Error
}

func (dao *vulnerabilityDAO) CountByTargetAndSeverity(targetID, severity string) (int64, error) {
	var total int64
	err := dao.db.Model(&models.Vulnerability{}).
		Where("target_id = ? AND severity = ?", targetID, severity).
		Count(&total).Error
	return total, err
}
