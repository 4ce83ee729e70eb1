package console

import (
	"context"
	"journey_backend/internal/model"
	"journey_backend/internal/util"
	"sort"
	"sync"
)

// Uploader 上传位需要的接口，Client 实现
type Uploader interface {
	Upload(ctx context.Context, assessmentID, slotKey string, f File) (*model.UploadedDocument, error)
	RemoveUpload(ctx context.Context, documentID string) error
}

// Slot 一个文档需求对应一个上传位，Request 为 nil 的是 other
type Slot struct {
	Key       string
	Request   *model.DocumentRequest
	Files     []model.UploadedDocument
	Uploading bool
}

// FileResult 批量上传中每个文件单独报告结果
type FileResult struct {
	Filename string
	Document *model.UploadedDocument
	Err      error
}

type SlotManager struct {
	api          Uploader
	assessmentID string
	maxBytes     int64

	mu    sync.Mutex
	order []string
	slots map[string]*Slot
}

// NewSlotManager 按文档需求的展示顺序建立上传位，最后追加 other
func NewSlotManager(api Uploader, assessmentID string, requests []model.DocumentRequest, existing map[string][]model.UploadedDocument, maxBytes int64) *SlotManager {
	if maxBytes <= 0 {
		maxBytes = util.DefaultMaxUploadBytes
	}
	reqs := append([]model.DocumentRequest(nil), requests...)
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].DisplayOrder < reqs[j].DisplayOrder })

	m := &SlotManager{
		api:          api,
		assessmentID: assessmentID,
		maxBytes:     maxBytes,
		slots:        make(map[string]*Slot, len(reqs)+1),
	}
	for i := range reqs {
		r := reqs[i]
		m.add(&Slot{Key: r.ID, Request: &r})
	}
	m.add(&Slot{Key: model.OtherDocumentsSlot})

	for key, files := range existing {
		if s, ok := m.slots[key]; ok {
			s.Files = append(s.Files, files...)
		}
	}
	return m
}

func (m *SlotManager) add(s *Slot) {
	m.order = append(m.order, s.Key)
	m.slots[s.Key] = s
}

// Slots 返回快照
func (m *SlotManager) Slots() []Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Slot, 0, len(m.order))
	for _, key := range m.order {
		s := *m.slots[key]
		s.Files = append([]model.UploadedDocument(nil), s.Files...)
		out = append(out, s)
	}
	return out
}

func (m *SlotManager) Slot(key string) (Slot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[key]
	if !ok {
		return Slot{}, false
	}
	cp := *s
	cp.Files = append([]model.UploadedDocument(nil), s.Files...)
	return cp, true
}

// UploadBatch 先在本地校验全部文件，再逐个上传合法文件；
// 被拒或上传失败的文件不影响其他文件。同一上传位同时只允许一个批次。
func (m *SlotManager) UploadBatch(ctx context.Context, slotKey string, files []File) ([]FileResult, error) {
	m.mu.Lock()
	slot, ok := m.slots[slotKey]
	if !ok {
		m.mu.Unlock()
		return nil, util.ErrUnknownSlot
	}
	if slot.Uploading {
		m.mu.Unlock()
		return nil, util.ErrSlotBusy
	}
	slot.Uploading = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		slot.Uploading = false
		m.mu.Unlock()
	}()

	results := make([]FileResult, len(files))
	var valid []int
	for i, f := range files {
		results[i].Filename = f.Name
		if _, ferr := util.ValidateUpload(f.Name, f.Size, f.ContentType, m.maxBytes); ferr != nil {
			results[i].Err = ferr
			continue
		}
		valid = append(valid, i)
	}

	for _, i := range valid {
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		doc, err := m.api.Upload(ctx, m.assessmentID, slotKey, files[i])
		if err != nil {
			results[i].Err = &util.FileError{Filename: files[i].Name, Reason: err.Error(), Err: err}
			continue
		}
		results[i].Document = doc
		m.mu.Lock()
		slot.Files = append(slot.Files, *doc)
		m.mu.Unlock()
	}
	return results, nil
}

// Remove 删除单个文件，同一上传位的其他文件保留
func (m *SlotManager) Remove(ctx context.Context, slotKey, documentID string) error {
	m.mu.Lock()
	slot, ok := m.slots[slotKey]
	m.mu.Unlock()
	if !ok {
		return util.ErrUnknownSlot
	}
	if err := m.api.RemoveUpload(ctx, documentID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := slot.Files[:0]
	for _, f := range slot.Files {
		if f.ID != documentID {
			kept = append(kept, f)
		}
	}
	slot.Files = kept
	return nil
}
