package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"

	"github.com/DanikLP1/chunk-upload-service/internal/storage/s3driver"
	"github.com/DanikLP1/chunk-upload-service/internal/upload"
)

type Config struct {
	Addr     string // ":8080"
	Disk     string // "local"|"memory"|"s3"
	DataDir  string // "./data"
	DBPath   string // "meta.db"
	LogLevel string // "info"
	LogJSON  bool

	ChunkDir  string // "chunks"
	MergedDir string // "merged"
	Sweep     bool   // удалять чанки после склейки

	Identifier     string // "session"|"auth"|"nop"
	SessionCookie  string // "chunkd_session"
	AllowAnonymous bool   // пускать без X-Api-Key при IDENTIFIER=auth

	Param               string // multipart field with the file
	ResumableTestMethod string // GET
	ResumableUpload     string // POST
	ResumableNamespace  string

	MaxChunkBytes int64 // 64MiB

	GCEvery  time.Duration // 15m
	GCMaxAge time.Duration // 24h

	S3Bucket    string
	S3Region    string // "us-east-1"
	S3Endpoint  string
	S3PathStyle bool
	S3Prefix    string
}

type env struct {
	file map[string]string
}

func (e env) getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v := e.file[key]; v != "" {
		return v
	}
	return def
}

func (e env) getbool(key string, def bool) bool {
	v := e.getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("invalid %s: %v", key, err)
		return def
	}
	return b
}

func (e env) getduration(key string, def time.Duration) time.Duration {
	v := e.getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("invalid %s: %q", key, v)
		return def
	}
	return d
}

func (e env) getsize(key string, def int64) int64 {
	v := e.getenv(key, "")
	if v == "" {
		return def
	}
	n, err := units.RAMInBytes(v)
	if err != nil || n <= 0 {
		log.Printf("invalid %s: %q", key, v)
		return def
	}
	return n
}

// New reads the process environment, falling back to ./.env.
func New() Config { return Load(".env") }

// Load reads the process environment; values missing there are taken from
// the given dotenv files, earlier files first. Missing files are ignored.
func Load(files ...string) Config {
	e := env{file: map[string]string{}}
	for _, f := range files {
		m, err := godotenv.Read(f)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Printf("config: read %s: %v", f, err)
			}
			continue
		}
		for k, v := range m {
			if _, ok := e.file[k]; !ok {
				e.file[k] = v
			}
		}
	}

	return Config{
		Addr:     e.getenv("ADDR", ":8080"),
		Disk:     strings.ToLower(e.getenv("DISK", "local")),
		DataDir:  e.getenv("DATA_DIR", "./data"),
		DBPath:   e.getenv("DB_PATH", "meta.db"),
		LogLevel: e.getenv("LOG_LEVEL", "info"),
		LogJSON:  e.getbool("LOG_JSON", true),

		ChunkDir:  e.getenv("CHUNK_DIR", "chunks"),
		MergedDir: e.getenv("MERGED_DIR", "merged"),
		Sweep:     e.getbool("SWEEP", true),

		Identifier:     strings.ToLower(e.getenv("IDENTIFIER", "session")),
		SessionCookie:  e.getenv("SESSION_COOKIE", "chunkd_session"),
		AllowAnonymous: e.getbool("ALLOW_ANONYMOUS", false),

		Param:               e.getenv("UPLOAD_PARAM", "file"),
		ResumableTestMethod: strings.ToUpper(e.getenv("RESUMABLE_TEST_METHOD", "GET")),
		ResumableUpload:     strings.ToUpper(e.getenv("RESUMABLE_UPLOAD_METHOD", "POST")),
		ResumableNamespace:  e.getenv("RESUMABLE_NAMESPACE", ""),

		MaxChunkBytes: e.getsize("MAX_CHUNK_BYTES", 64*units.MiB),

		GCEvery:  e.getduration("GC_EVERY", 15*time.Minute),
		GCMaxAge: e.getduration("GC_MAX_AGE", 24*time.Hour),

		S3Bucket:    e.getenv("S3_BUCKET", ""),
		S3Region:    e.getenv("S3_REGION", "us-east-1"),
		S3Endpoint:  e.getenv("S3_ENDPOINT", ""),
		S3PathStyle: e.getbool("S3_PATH_STYLE", false),
		S3Prefix:    e.getenv("S3_PREFIX", ""),
	}
}

// Storage is the value object the upload coordinator is built from.
func (c Config) Storage() upload.Config {
	return upload.Config{
		Disk:      c.Disk,
		ChunkDir:  c.ChunkDir,
		MergedDir: c.MergedDir,
		Sweep:     c.Sweep,
	}
}

// S3 returns the bucket settings; credentials come from the default AWS chain.
func (c Config) S3() s3driver.Params {
	return s3driver.Params{
		Bucket:    c.S3Bucket,
		Region:    c.S3Region,
		Endpoint:  c.S3Endpoint,
		PathStyle: c.S3PathStyle,
		Prefix:    c.S3Prefix,
	}
}
