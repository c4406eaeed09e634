package module

import (
	"time"

	"eventsink/internal/core/buffer"
	"eventsink/internal/core/sqlident"
	"eventsink/internal/core/statement"
	"eventsink/internal/platform/config"
	perr "eventsink/internal/platform/errors"
	"eventsink/internal/platform/net/http/bind"
	"eventsink/internal/platform/store"
)

// Options holds configuration settings for the export module
type Options struct {
	ClusterHost        string        `json:"clusterHost" validate:"required,redshift_host"`
	ClusterPort        int           `json:"clusterPort" validate:"required,min=1,max=65535"`
	DBName             string        `json:"dbName" validate:"required"`
	TableName          string        `json:"tableName" validate:"required"`
	Schema             string        `json:"schema"`
	DBUsername         string        `json:"dbUsername" validate:"required"`
	DBPassword         string        `json:"dbPassword" validate:"required"`
	UploadSeconds      int           `json:"uploadSeconds" validate:"min=1,max=600"`
	UploadMegabytes    int           `json:"uploadMegabytes" validate:"min=1,max=10"`
	EventsToIgnore     []string      `json:"eventsToIgnore"`
	PropertiesDataType string        `json:"propertiesDataType"`
	SSLMode            string        `json:"sslMode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	StatementTimeout   time.Duration `json:"statementTimeout" validate:"min=0"`
}

// FromConfig reads CORE_EXPORT_* settings; upload bounds are clamped, the
// rest is checked by Validate
func FromConfig(cfg config.Conf) Options {
	ef := cfg.Prefix("CORE_EXPORT_")
	return Options{
		ClusterHost:        ef.MayString("CLUSTER_HOST", ""),
		ClusterPort:        ef.MayInt("CLUSTER_PORT", 0),
		DBName:             ef.MayString("DB_NAME", ""),
		TableName:          ef.MayString("TABLE_NAME", "posthog_event"),
		Schema:             ef.MayString("SCHEMA", "public"),
		DBUsername:         ef.MayString("DB_USERNAME", ""),
		DBPassword:         ef.MayString("DB_PASSWORD", ""),
		UploadSeconds:      ef.MayIntClamped("UPLOAD_SECONDS", 30, 1, 600),
		UploadMegabytes:    ef.MayIntClamped("UPLOAD_MEGABYTES", 1, 1, 10),
		EventsToIgnore:     ef.MayCSV("EVENTS_TO_IGNORE", []string{"$feature_flag_called"}),
		PropertiesDataType: ef.MayString("PROPERTIES_DATA_TYPE", "varchar"),
		SSLMode:            ef.MayString("SSL_MODE", "require"),
		StatementTimeout:   ef.MayDuration("STATEMENT_TIMEOUT", 60*time.Second),
	}
}

// Validate reports the first bad option as a Configuration error naming it
func (o Options) Validate() error {
	if err := bind.Struct(o); err != nil {
		out := perr.Wrap(err, perr.ErrorCodeConfiguration, "invalid export options")
		if e, ok := perr.As(err); ok {
			out = perr.WithField(out, e.Field())
		}
		return out
	}
	if sqlident.Sanitize(o.TableName) == "" {
		return perr.WithField(perr.Configf("table name %q has no usable characters", o.TableName), "tableName")
	}
	if _, err := o.Dialect(); err != nil {
		return err
	}
	return nil
}

// Dialect is the parsed PropertiesDataType
func (o Options) Dialect() (statement.Dialect, error) {
	return statement.ParseDialect(o.PropertiesDataType)
}

// ByteLimit is the effective buffer limit in bytes
func (o Options) ByteLimit() int { return buffer.ClampBytes(o.UploadMegabytes << 20) }

// Window is the effective buffer window
func (o Options) Window() time.Duration {
	return buffer.ClampWindow(time.Duration(o.UploadSeconds) * time.Second)
}

// Store maps the connection options onto the warehouse seam
func (o Options) Store() store.PGConfig {
	return store.PGConfig{
		Enabled:  true,
		Host:     o.ClusterHost,
		Port:     o.ClusterPort,
		Database: o.DBName,
		User:     o.DBUsername,
		Password: o.DBPassword,
		SSLMode:  o.SSLMode,
	}
}
