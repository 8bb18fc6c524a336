package config

import (
	"github.com/dmitrijs2005/ecomarket/internal/flagx"
	"github.com/dmitrijs2005/ecomarket/internal/timex"
)

// FileConfig is the on-disk shape of the configuration. It is decoded from
// JSON or YAML by flagx and then merged into Config.
// Durations use timex.Duration so both "24h" and integer nanoseconds work.
type FileConfig struct {
	EndpointAddrHTTP      string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	EndpointAddrGRPC      string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDSN           string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey             string         `json:"secret_key" yaml:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration" yaml:"token_validity_duration"`
	BcryptCost            int            `json:"bcrypt_cost" yaml:"bcrypt_cost"`
	UploadDir             string         `json:"upload_dir" yaml:"upload_dir"`
	MaxUploadSize         int64          `json:"max_upload_size" yaml:"max_upload_size"`
	PublicImagePath       string         `json:"public_image_path" yaml:"public_image_path"`
	AdminUsername         string         `json:"admin_username" yaml:"admin_username"`
	AdminEmail            string         `json:"admin_email" yaml:"admin_email"`
	AdminPassword         string         `json:"admin_password" yaml:"admin_password"`
	LogFormat             string         `json:"log_format" yaml:"log_format"`
	S3RootUser            string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword        string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket              string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region              string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
}

// parseFile overlays the file named by the -c or -config flag onto config.
// The format follows the file extension (see flagx.FormatOf). Only keys
// present with a non-zero value override the current settings, so a partial
// file keeps the defaults for everything it does not mention.
// If the file cannot be read or decoded, the function panics.
func parseFile(config *Config) {
	fc := &FileConfig{}
	loaded, err := flagx.LoadConfigFile(fc)
	if err != nil {
		panic(err)
	}
	if loaded {
		fc.apply(config)
	}
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	setString(&c.EndpointAddrGRPC, fc.EndpointAddrGRPC)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.SecretKey, fc.SecretKey)
	if fc.TokenValidityDuration.Duration != 0 {
		c.TokenValidityDuration = fc.TokenValidityDuration.Duration
	}
	if fc.BcryptCost != 0 {
		c.BcryptCost = fc.BcryptCost
	}
	setString(&c.UploadDir, fc.UploadDir)
	if fc.MaxUploadSize != 0 {
		c.MaxUploadSize = fc.MaxUploadSize
	}
	setString(&c.PublicImagePath, fc.PublicImagePath)
	setString(&c.AdminUsername, fc.AdminUsername)
	setString(&c.AdminEmail, fc.AdminEmail)
	setString(&c.AdminPassword, fc.AdminPassword)
	setString(&c.LogFormat, fc.LogFormat)
	setString(&c.S3RootUser, fc.S3RootUser)
	setString(&c.S3RootPassword, fc.S3RootPassword)
	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
