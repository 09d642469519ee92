// Package database owns the SQLite connection and schema for the
// circulation catalog core: identifiers, equivalencies, the recursive
// equivalents cache and the coverage ledger.
package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openlibris/circulate/internal/entities"
)

var defaultDataSources = []entities.DataSource{
	{Name: entities.DataSourceOverdrive, DisplayName: "OverDrive"},
	{Name: entities.DataSourceBibliotheca, DisplayName: "Bibliotheca"},
	{Name: entities.DataSourceBoundless, DisplayName: "Boundless"},
	{Name: entities.DataSourceGutenberg, DisplayName: "Project Gutenberg"},
	{Name: entities.DataSourceOCLC, DisplayName: "OCLC Linked Data"},
	{Name: entities.DataSourceContentCafe, DisplayName: "Content Cafe"},
	{Name: entities.DataSourceOpenLibrary, DisplayName: "Open Library"},
	{Name: entities.DataSourceLibraryStaff, DisplayName: "Library Staff"},
	{Name: entities.DataSourceManual, DisplayName: "Manual Entry"},
}

type Database struct {
	DB *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	// Foreign keys must be on: cascade deletion of equivalencies, cache rows
	// and coverage records hangs off the identifier FK constraints.
	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.DataSource{},
		&entities.Identifier{},
		&entities.Equivalency{},
		&entities.RecursiveEquivalency{},
		&entities.EquivalencyCoverageRecord{},
		&entities.Setting{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	database := &Database{DB: db}

	if err := database.seedDataSources(); err != nil {
		return nil, fmt.Errorf("failed to seed data sources: %w", err)
	}

	return database, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) seedDataSources() error {
	for _, source := range defaultDataSources {
		var existing entities.DataSource
		result := d.DB.Where("name = ?", source.Name).First(&existing)
		if result.Error == gorm.ErrRecordNotFound {
			if err := d.DB.Create(&source).Error; err != nil {
				return fmt.Errorf("failed to create data source %s: %w", source.Name, err)
			}
		} else if result.Error != nil {
			return result.Error
		}
	}
	return nil
}

func (d *Database) GetDataSourceByName(name string) (*entities.DataSource, error) {
	var source entities.DataSource
	err := d.DB.Where("name = ?", name).First(&source).Error
	if err != nil {
		return nil, err
	}
	return &source, nil
}

func (d *Database) GetAllDataSources() ([]entities.DataSource, error) {
	var sources []entities.DataSource
	err := d.DB.Find(&sources).Error
	return sources, err
}
