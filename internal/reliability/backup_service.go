// Package reliability provides backup and data-protection services.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/ericscottllc/triggergrain/internal/config"
	"github.com/ericscottllc/triggergrain/internal/database"
)

const (
	defaultBackupsToKeep = 7
	remoteKeyPrefix      = "backups/"
)

// BackupService snapshots the databases, archives them, and optionally
// uploads the archive to S3-compatible storage
type BackupService struct {
	databases map[string]*database.DB
	dataDir   string
	backupDir string
	s3Client  *s3.Client
	s3Cfg     *config.BackupConfig
	log       zerolog.Logger
}

// NewBackupService creates a new backup service. remote may be nil, in which
// case backups stay local.
func NewBackupService(
	databases map[string]*database.DB,
	dataDir string,
	remote *config.BackupConfig,
	log zerolog.Logger,
) (*BackupService, error) {
	s := &BackupService{
		databases: databases,
		dataDir:   dataDir,
		backupDir: filepath.Join(dataDir, "backups"),
		s3Cfg:     remote,
		log:       log.With().Str("service", "backup").Logger(),
	}

	if remote != nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(remote.Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(remote.AccessKeyID, remote.SecretAccessKey, ""),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load S3 config: %w", err)
		}

		s.s3Client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if remote.Endpoint != "" {
				o.BaseEndpoint = aws.String(remote.Endpoint)
				o.UsePathStyle = true
			}
		})
	}

	return s, nil
}

// Run performs a full backup cycle: snapshot, archive, checksum, upload,
// rotate. Implements the scheduler Job interface.
func (s *BackupService) Run() error {
	startTime := time.Now()
	s.log.Info().Msg("Starting backup")

	stamp := time.Now().UTC().Format("2006-01-02_150405")
	snapshotDir := filepath.Join(s.backupDir, "snapshots", stamp)
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	defer os.RemoveAll(snapshotDir)

	for name := range s.databases {
		backupPath := filepath.Join(snapshotDir, name+".db")
		if err := s.backupDatabase(name, backupPath); err != nil {
			return fmt.Errorf("failed to backup %s: %w", name, err)
		}
		if err := s.verifyBackup(backupPath); err != nil {
			os.Remove(backupPath)
			return fmt.Errorf("backup verification failed for %s: %w", name, err)
		}
	}

	archivePath := filepath.Join(s.backupDir, fmt.Sprintf("triggergrain_%s.tar.gz", stamp))
	checksum, err := s.archiveSnapshot(snapshotDir, archivePath)
	if err != nil {
		return fmt.Errorf("failed to archive snapshot: %w", err)
	}

	if s.s3Client != nil {
		if err := s.upload(archivePath, checksum); err != nil {
			return fmt.Errorf("failed to upload backup: %w", err)
		}
	}

	if err := s.rotateLocal(); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate local backups")
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archivePath).
		Str("sha256", checksum).
		Msg("Backup completed")

	return nil
}

// Name returns the job name
func (s *BackupService) Name() string {
	return "backup"
}

// backupDatabase snapshots one database with SQLite's VACUUM INTO
func (s *BackupService) backupDatabase(name, backupPath string) error {
	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("database %s not found", name)
	}

	if _, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath)); err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}
	return nil
}

// verifyBackup opens the snapshot and runs an integrity check
func (s *BackupService) verifyBackup(backupPath string) error {
	backupDB, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	if err := backupDB.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("quick_check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("quick_check reported: %s", result)
	}
	return nil
}

// archiveSnapshot writes a tar.gz of the snapshot directory and returns the
// archive's SHA-256 checksum
func (s *BackupService) archiveSnapshot(snapshotDir, archivePath string) (string, error) {
	out, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	hasher := sha256.New()
	gz := gzip.NewWriter(io.MultiWriter(out, hasher))
	tw := tar.NewWriter(gz)

	entries, err := os.ReadDir(snapshotDir)
	if err != nil {
		return "", fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := s.addToArchive(tw, filepath.Join(snapshotDir, entry.Name()), entry.Name()); err != nil {
			return "", err
		}
	}

	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize gzip: %w", err)
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

func (s *BackupService) addToArchive(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	header := &tar.Header{
		Name:    name,
		Size:    info.Size(),
		Mode:    0644,
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to write %s to tar: %w", name, err)
	}
	return nil
}

// upload pushes the archive to the configured bucket with its checksum as
// object metadata
func (s *BackupService) upload(archivePath, checksum string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	key := remoteKeyPrefix + filepath.Base(archivePath)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Multipart upload keeps memory flat on large archives
	uploader := manager.NewUploader(s.s3Client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.s3Cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
		Metadata: map[string]string{
			"sha256": checksum,
		},
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	s.log.Info().Str("bucket", s.s3Cfg.Bucket).Str("key", key).Msg("Backup uploaded")
	return nil
}

// rotateLocal keeps the newest archives and removes the rest
func (s *BackupService) rotateLocal() error {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return fmt.Errorf("failed to read backup directory: %w", err)
	}

	var archives []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".tar.gz") {
			archives = append(archives, entry.Name())
		}
	}
	keep := defaultBackupsToKeep
	if s.s3Cfg != nil && s.s3Cfg.Keep > 0 {
		keep = s.s3Cfg.Keep
	}
	if len(archives) <= keep {
		return nil
	}

	// Timestamped names sort chronologically
	sort.Strings(archives)
	for _, name := range archives[:len(archives)-keep] {
		path := filepath.Join(s.backupDir, name)
		if err := os.Remove(path); err != nil {
			s.log.Error().Err(err).Str("path", path).Msg("Failed to remove old backup")
			continue
		}
		s.log.Debug().Str("path", path).Msg("Removed old backup")
	}

	return nil
}
