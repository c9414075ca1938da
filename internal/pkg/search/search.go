package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/kxrica/go-skyvault/internal/config"
	"github.com/kxrica/go-skyvault/internal/models"
	"github.com/kxrica/go-skyvault/internal/pkg/logger"
	"go.uber.org/zap"
)

// FileDocument 是写入 Elasticsearch 的文件文档
type FileDocument struct {
	FileID   uint64  `json:"file_id"`
	UserID   uint64  `json:"user_id"`
	Name     string  `json:"name"`
	MimeType *string `json:"mime_type,omitempty"`
	Size     int64   `json:"size"`
}

// FileIndexer 把文件元数据同步到 Elasticsearch 并提供按名称搜索
// 索引是旁路数据,所有写入都是尽力而为,失败只记录日志不影响主流程
type FileIndexer interface {
	IndexFile(ctx context.Context, file *models.File)
	RemoveFile(ctx context.Context, fileID uint64)
	SearchFiles(ctx context.Context, userID uint64, keyword string, limit int) ([]FileDocument, error)
}

type fileIndexer struct {
	client *elasticsearch.Client
	index  string
}

var _ FileIndexer = (*fileIndexer)(nil)

// NewFileIndexer 创建一个新的 FileIndexer 实例
func NewFileIndexer(client *elasticsearch.Client, cfg *config.ElasticsearchConfig) FileIndexer {
	return &fileIndexer{
		client: client,
		index:  cfg.FileIndex,
	}
}

func (i *fileIndexer) IndexFile(ctx context.Context, file *models.File) {
	doc := FileDocument{
		FileID:   file.ID,
		UserID:   file.UserID,
		Name:     file.Name,
		MimeType: file.MimeType,
		Size:     file.Size,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		logger.Error("IndexFile: Failed to marshal file document", zap.Uint64("fileID", file.ID), zap.Error(err))
		return
	}

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithDocumentID(strconv.FormatUint(file.ID, 10)),
		i.client.Index.WithContext(ctx),
	)
	if err != nil {
		logger.Error("IndexFile: Failed to index file", zap.Uint64("fileID", file.ID), zap.Error(err))
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		logger.Error("IndexFile: Elasticsearch returned error", zap.Uint64("fileID", file.ID), zap.String("status", res.Status()))
	}
}

func (i *fileIndexer) RemoveFile(ctx context.Context, fileID uint64) {
	res, err := i.client.Delete(
		i.index,
		strconv.FormatUint(fileID, 10),
		i.client.Delete.WithContext(ctx),
	)
	if err != nil {
		logger.Error("RemoveFile: Failed to delete file document", zap.Uint64("fileID", fileID), zap.Error(err))
		return
	}
	defer res.Body.Close()

	// 404 说明文档本来就不在索引里,不算错误
	if res.IsError() && res.StatusCode != 404 {
		logger.Error("RemoveFile: Elasticsearch returned error", zap.Uint64("fileID", fileID), zap.String("status", res.Status()))
	}
}

// SearchFiles 在用户自己的文件中按名称做模糊匹配
func (i *fileIndexer) SearchFiles(ctx context.Context, userID uint64, keyword string, limit int) ([]FileDocument, error) {
	if limit <= 0 {
		limit = 20
	}

	query := map[string]any{
		"size": limit,
		"query": map[string]any{
			"bool": map[string]any{
				"must": []map[string]any{
					{"match": map[string]any{"name": keyword}},
				},
				"filter": []map[string]any{
					{"term": map[string]any{"user_id": userID}},
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("构造搜索请求失败: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("执行文件搜索失败: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("文件搜索返回错误: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source FileDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("解析搜索结果失败: %w", err)
	}

	docs := make([]FileDocument, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}
