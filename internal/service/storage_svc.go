package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ==================== 接口定义 ====================

// StorageProvider 存储提供方接口
type StorageProvider interface {
	// Upload 上传文件，返回可访问的 URL
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Delete 删除文件
	Delete(ctx context.Context, key string) error

	// GetSignedURL 获取带签名的临时访问 URL
	GetSignedURL(ctx context.Context, key string, expire time.Duration) (string, error)
}

// StorageConfig 存储配置
type StorageConfig struct {
	Provider  string // local, s3
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
	CDNDomain string // 可选，配置后替换默认下载域名
	BasePath  string // local 模式的根目录，或对象键前缀
	BaseURL   string // local 模式对外暴露的 URL 前缀
}

// NewStorageProvider 按配置创建存储提供方
func NewStorageProvider(cfg *StorageConfig) (StorageProvider, error) {
	switch cfg.Provider {
	case "", "local":
		return NewLocalStorage(cfg)
	case "s3":
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("不支持的存储提供方: %s", cfg.Provider)
	}
}

// ==================== 本地存储实现 ====================

// LocalStorage 本地文件系统存储，配合静态路由对外提供下载
type LocalStorage struct {
	rootDir string
	baseURL string
}

func NewLocalStorage(cfg *StorageConfig) (*LocalStorage, error) {
	rootDir := cfg.BasePath
	if rootDir == "" {
		rootDir = "data/decks"
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建本地存储目录失败: %v", err)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "/files"
	}
	return &LocalStorage{
		rootDir: rootDir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *LocalStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	fullPath := filepath.Join(s.rootDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("创建目录失败: %v", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("写入文件失败: %v", err)
	}
	return s.baseURL + "/" + key, nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath := filepath.Join(s.rootDir, filepath.FromSlash(key))
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除文件失败: %v", err)
	}
	return nil
}

// GetSignedURL 本地存储无签名机制，直接返回静态 URL
func (s *LocalStorage) GetSignedURL(ctx context.Context, key string, expire time.Duration) (string, error) {
	return s.baseURL + "/" + key, nil
}

// RootDir 静态路由挂载用
func (s *LocalStorage) RootDir() string {
	return s.rootDir
}

// PurgeOlderThan 删除早于给定时间的生成产物，返回删除数量
func (s *LocalStorage) PurgeOlderThan(before time.Time) (int, error) {
	purged := 0
	err := filepath.Walk(s.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.ModTime().Before(before) {
			if rmErr := os.Remove(path); rmErr != nil {
				log.Printf("清理过期文件失败 %s: %v", path, rmErr)
				return nil
			}
			purged++
		}
		return nil
	})
	return purged, err
}

// ==================== S3 存储实现 ====================

// S3Storage AWS S3 及兼容对象存储
type S3Storage struct {
	client    *s3.Client
	bucket    string
	region    string
	cdnDomain string
	basePath  string
}

func NewS3Storage(cfg *StorageConfig) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 存储桶未配置")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("加载 S3 配置失败: %v", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		cdnDomain: cfg.CDNDomain,
		basePath:  strings.Trim(cfg.BasePath, "/"),
	}, nil
}

func (s *S3Storage) objectKey(key string) string {
	if s.basePath == "" {
		return key
	}
	return s.basePath + "/" + key
}

func (s *S3Storage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	objKey := s.objectKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("S3 上传失败: %v", err)
	}

	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, objKey), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, objKey), nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("S3 删除失败: %v", err)
	}
	return nil
}

func (s *S3Storage) GetSignedURL(ctx context.Context, key string, expire time.Duration) (string, error) {
	presigner := s3.NewPresignClient(s.client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	}, s3.WithPresignExpires(expire))
	if err != nil {
		return "", fmt.Errorf("S3 签名失败: %v", err)
	}
	return req.URL, nil
}

// ==================== 存储服务 ====================

// StorageService 存储服务，封装键生成与提供方调用
type StorageService struct {
	provider StorageProvider
}

func NewStorageService(provider StorageProvider) *StorageService {
	return &StorageService{provider: provider}
}

func (s *StorageService) Provider() StorageProvider {
	return s.provider
}

// UploadDeck 上传生成的演示文稿，按日期分目录
func (s *StorageService) UploadDeck(ctx context.Context, data []byte) (string, error) {
	key := generateDeckKey()
	return s.provider.Upload(ctx, key, data,
		"application/vnd.openxmlformats-officedocument.presentationml.presentation")
}

func (s *StorageService) Delete(ctx context.Context, key string) error {
	return s.provider.Delete(ctx, key)
}

// generateDeckKey 生成形如 decks/2026/08/uuid.pptx 的对象键
func generateDeckKey() string {
	now := time.Now()
	return fmt.Sprintf("decks/%04d/%02d/%s.pptx", now.Year(), now.Month(), uuid.New().String())
}
