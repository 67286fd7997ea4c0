package models

import (
	"time"
)

// 注意：
// - 与 db/migrations 中的 zvt_units 表保持对齐
// - 不使用 gorm.Model，显式声明每个字段

// CapturedUnit 映射 zvt_units 表（一条解析出的 APDU 或串口握手）
type CapturedUnit struct {
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// 连接标识（tcpserver 分配的 UUID）
	ConnID     string `gorm:"column:conn_id;type:text;not null;index:idx_zvt_units_conn_time,priority:1"`
	RemoteAddr string `gorm:"column:remote_addr;type:text;not null"`
	// tcp | serial | serial_handshake
	Transport string `gorm:"column:transport;type:text;not null"`
	// 控制字段；短状态应答与握手为空
	Control *int32 `gorm:"column:control;index:idx_zvt_units_control"`
	Name    string `gorm:"column:name;type:text;not null"`
	// ecr_to_pt | pt_to_ecr | unknown
	Direction   string `gorm:"column:direction;type:text;not null"`
	StatusCCRC  *int16 `gorm:"column:status_ccrc"`
	StatusAPRC  *int16 `gorm:"column:status_aprc"`
	LengthField int32  `gorm:"column:length_field;not null;default:0"`
	LengthWidth int16  `gorm:"column:length_width;not null;default:0"`
	Size        int32  `gorm:"column:size;not null"`
	Payload     []byte `gorm:"column:payload"`
	// 授权负载数据项（JSON 数组）
	Fields     []byte     `gorm:"column:fields;type:jsonb"`
	FieldsStop *string    `gorm:"column:fields_stop;type:text"`
	CRC        *int32     `gorm:"column:crc"`
	RawHex     *string    `gorm:"column:raw_hex;type:text"`
	CapturedAt time.Time  `gorm:"column:captured_at;not null;index:idx_zvt_units_conn_time,priority:2,sort:desc"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (CapturedUnit) TableName() string { return "zvt_units" }

// ControlCount 按控制字段聚合的计数
type ControlCount struct {
	Control   *int32 `gorm:"column:control" json:"control"`
	Name      string `gorm:"column:name" json:"name"`
	Direction string `gorm:"column:direction" json:"direction"`
	Total     int64  `gorm:"column:total" json:"total"`
}
