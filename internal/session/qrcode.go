package session

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PayloadKind - тип QR-кода, объявленный в самом коде.
type PayloadKind string

const (
	KindShift    PayloadKind = "Shift"
	KindCleaning PayloadKind = "Cleaning"
)

const unregisteredAreaName = "Unregistered area"

// QRPayload - результат декодирования скана.
type QRPayload struct {
	AreaID    string      `json:"areaId"`
	AreaName  string      `json:"areaName"`
	Type      PayloadKind `json:"type,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"`
	Valid     bool        `json:"valid"`
}

type wirePayload struct {
	AreaID    string      `json:"areaId"`
	AreaName  string      `json:"areaName"`
	Type      PayloadKind `json:"type"`
	Timestamp json.Number `json:"timestamp,omitempty"`
}

// DecodePayload никогда не падает: всё, что не разбирается как объект
// с areaId, превращается в синтезированную зону с Valid=false.
func DecodePayload(raw string) QRPayload {
	var w wirePayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &w); err != nil {
		return fallbackPayload()
	}
	areaID := strings.TrimSpace(w.AreaID)
	if areaID == "" {
		return fallbackPayload()
	}

	p := QRPayload{
		AreaID:   areaID,
		AreaName: strings.TrimSpace(w.AreaName),
		Type:     w.Type,
		Valid:    true,
	}
	if p.AreaName == "" {
		p.AreaName = "Area " + areaID
	}
	p.Timestamp = timestampMillis(w.Timestamp)
	return p
}

// timestampMillis переводит метку в миллисекунды. Дробная часть
// отбрасывается, значения вне диапазона int64 прижимаются к границам.
func timestampMillis(n json.Number) int64 {
	if n == "" {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	f, err := strconv.ParseFloat(string(n), 64)
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	case err != nil:
		return 0
	}
	return int64(f)
}

// EncodePayload собирает QR-строку для тестовых и симулированных кодов.
func EncodePayload(areaID, areaName string, kind PayloadKind, at time.Time) (string, error) {
	if strings.TrimSpace(areaID) == "" {
		return "", errors.New("area id is required")
	}
	if kind != KindShift && kind != KindCleaning {
		return "", errors.New("unknown payload type: " + string(kind))
	}
	data, err := json.Marshal(wirePayload{
		AreaID:    areaID,
		AreaName:  areaName,
		Type:      kind,
		Timestamp: json.Number(strconv.FormatInt(at.UnixMilli(), 10)),
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fallbackPayload() QRPayload {
	return QRPayload{
		AreaID:   "area-" + uuid.NewString()[:8],
		AreaName: unregisteredAreaName,
		Valid:    false,
	}
}
