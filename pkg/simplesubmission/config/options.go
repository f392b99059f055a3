package config

import (
	"fmt"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseURL configures the database from a connection string. An empty
// string or "memory" selects the in-memory repository; a postgresql:// or
// postgres:// URL selects the postgres repository.
func WithDatabaseURL(url string) Option {
	return func(c *ServerConfig) error {
		return applyDatabaseURL(url, c)
	}
}

// WithStorageURL configures the blob store from a connection string:
// "memory://", "file:///path/to/data", or
// "s3://bucket?region=us-east-1&endpoint=http://localhost:9000".
func WithStorageURL(url string) Option {
	return func(c *ServerConfig) error {
		return applyStorageURL(url, c)
	}
}

// WithMemoryStorage selects the in-memory blob store (for testing)
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.StorageType = "memory"
		return nil
	}
}

// WithFilesystemStorage selects filesystem storage rooted at baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageType = "fs"
		c.FSBaseDir = baseDir
		return nil
	}
}

// WithS3Storage selects S3-compatible storage
func WithS3Storage(s3 S3Config) Option {
	return func(c *ServerConfig) error {
		if s3.Bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if s3.Region == "" {
			s3.Region = "us-east-1"
		}
		c.StorageType = "s3"
		c.S3 = s3
		return nil
	}
}

// WithFFProbe sets the ffprobe binary used for media probing
func WithFFProbe(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return fmt.Errorf("ffprobe path cannot be empty")
		}
		c.EnableProbe = true
		c.FFProbePath = path
		return nil
	}
}

// WithoutProbe disables media probing; forms with image, video or audio
// constraints will reject every upload.
func WithoutProbe() Option {
	return func(c *ServerConfig) error {
		c.EnableProbe = false
		return nil
	}
}
