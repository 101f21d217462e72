package main

import (
	"testing"

	"github.com/keithlinneman/pasaeventos-api/internal/cfg"
	"github.com/keithlinneman/pasaeventos-api/internal/deps"
)

func TestDepsConfig_Minio(t *testing.T) {
	dc := depsConfig(cfg.App{
		MySQLHost:       "pasaeventos_db",
		MySQLPort:       3306,
		RedisHost:       "redis",
		RedisPort:       6379,
		StorageProvider: cfg.StorageMinio,
		MinioEndpoint:   "minio",
		MinioPort:       9000,
		MinioAccessKey:  "root",
		MinioSecretKey:  "password",
		S3Key:           "ignored",
		MailHost:        "mailhog",
		MailPort:        465,
	})

	if dc.Storage.Provider != deps.ProviderMinio || dc.Storage.Endpoint != "minio" || dc.Storage.Port != 9000 {
		t.Fatalf("storage = %+v", dc.Storage)
	}
	if dc.Storage.AccessKey != "root" || dc.Storage.SecretKey != "password" {
		t.Fatalf("minio credentials not used: %+v", dc.Storage)
	}
	if !dc.Mail.ImplicitTLS {
		t.Fatal("port 465 should use implicit TLS")
	}
	if dc.MySQL.Host != "pasaeventos_db" || dc.Redis.Port != 6379 {
		t.Fatalf("mysql = %+v redis = %+v", dc.MySQL, dc.Redis)
	}
}

func TestDepsConfig_S3(t *testing.T) {
	dc := depsConfig(cfg.App{
		StorageProvider: cfg.StorageS3,
		MinioEndpoint:   "ignored",
		S3Region:        "us-east-2",
		S3Key:           "AKIA",
		S3Secret:        "secret",
		S3Bucket:        "pasaeventos",
	})

	s := dc.Storage
	if s.Provider != deps.ProviderS3 || s.Endpoint != "" || s.Region != "us-east-2" || s.Bucket != "pasaeventos" {
		t.Fatalf("storage = %+v", s)
	}
	if s.AccessKey != "AKIA" || s.SecretKey != "secret" {
		t.Fatalf("s3 credentials not used: %+v", s)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger(cfg.App{StacktraceLevel: "error", LogFormat: "auto"}); err != nil {
		t.Fatalf("newLogger defaults: %v", err)
	}
	if _, err := newLogger(cfg.App{LogLevel: "loud", StacktraceLevel: "error"}); err == nil {
		t.Fatal("expected error for bad log level")
	}
	if _, err := newLogger(cfg.App{StacktraceLevel: "error", LogFormat: "xml"}); err == nil {
		t.Fatal("expected error for bad log format")
	}
}
