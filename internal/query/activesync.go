package query

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"foldermeta/internal/providers"
)

// ActiveSyncAnnotation ActiveSync设置注解键名
const ActiveSyncAnnotation = "/shared/vendor/kolab/activesync"

// DeviceSettings 单个设备对文件夹的同步设置
type DeviceSettings struct {
	Sync  int `json:"S"`
	Alarm int `json:"A,omitempty"`
}

// ActiveSyncData 文件夹的ActiveSync设置
type ActiveSyncData struct {
	Devices map[string]DeviceSettings `json:"DEVICE,omitempty"`
}

// Syncs 设备是否同步该文件夹
func (d *ActiveSyncData) Syncs(device string) bool {
	if d == nil {
		return false
	}
	return d.Devices[device].Sync > 0
}

// LiveActiveSync 直接访问后端的ActiveSync查询
type LiveActiveSync struct {
	backend providers.AnnotationBackend
}

// NewLiveActiveSync 创建ActiveSync查询
func NewLiveActiveSync(backend providers.AnnotationBackend) *LiveActiveSync {
	return &LiveActiveSync{backend: backend}
}

// Tag 查询标签
func (q *LiveActiveSync) Tag() Tag {
	return TagActiveSync
}

// GetActiveSync 读取文件夹的设备同步设置，未设置时返回空设置
func (q *LiveActiveSync) GetActiveSync(ctx context.Context, folder string) (*ActiveSyncData, error) {
	data := &ActiveSyncData{Devices: make(map[string]DeviceSettings)}

	value, err := q.backend.GetAnnotation(ctx, folder, ActiveSyncAnnotation)
	if err != nil {
		if providers.IsNotFound(err) {
			return data, nil
		}
		return nil, err
	}
	if value == "" {
		return data, nil
	}

	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid activesync annotation on %q: %w", folder, err)
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("invalid activesync annotation on %q: %w", folder, err)
	}
	if data.Devices == nil {
		data.Devices = make(map[string]DeviceSettings)
	}
	return data, nil
}

// SetActiveSync 写入文件夹的设备同步设置，空设置删除注解
func (q *LiveActiveSync) SetActiveSync(ctx context.Context, folder string, data *ActiveSyncData) error {
	if data == nil || len(data.Devices) == 0 {
		return q.backend.SetAnnotation(ctx, folder, ActiveSyncAnnotation, "")
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode activesync settings: %w", err)
	}
	return q.backend.SetAnnotation(ctx, folder, ActiveSyncAnnotation, base64.StdEncoding.EncodeToString(raw))
}
