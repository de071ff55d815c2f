package metadata

import (
	"strconv"
	"strings"
	"time"
)

// Metadata carries the loosely typed settings of a listener or handler,
// as found in the metadata section of a service config.
type Metadata interface {
	IsExists(key string) bool
	Set(key string, value any)
	Get(key string) any
}

type mapMetadata map[string]any

// NewMetadata wraps m. Keys are matched case-insensitively.
func NewMetadata(m map[string]any) Metadata {
	md := make(mapMetadata, len(m))
	for k, v := range m {
		md[strings.ToLower(k)] = v
	}
	return md
}

func (m mapMetadata) IsExists(key string) bool {
	_, ok := m[strings.ToLower(key)]
	return ok
}

func (m mapMetadata) Set(key string, value any) {
	m[strings.ToLower(key)] = value
}

func (m mapMetadata) Get(key string) any {
	if m != nil {
		return m[strings.ToLower(key)]
	}
	return nil
}

func GetBool(md Metadata, key string) (v bool) {
	if md == nil || !md.IsExists(key) {
		return
	}
	switch vv := md.Get(key).(type) {
	case bool:
		return vv
	case int:
		return vv != 0
	case string:
		v, _ = strconv.ParseBool(vv)
		return
	}
	return
}

func GetInt(md Metadata, key string) (v int) {
	if md == nil {
		return
	}
	switch vv := md.Get(key).(type) {
	case bool:
		if vv {
			v = 1
		}
	case int:
		return vv
	case int64:
		return int(vv)
	case float64:
		return int(vv)
	case string:
		v, _ = strconv.Atoi(vv)
		return
	}
	return
}

func GetFloat(md Metadata, key string) (v float64) {
	if md == nil {
		return
	}
	switch vv := md.Get(key).(type) {
	case int:
		return float64(vv)
	case float64:
		return vv
	case string:
		v, _ = strconv.ParseFloat(vv, 64)
		return
	}
	return
}

func GetString(md Metadata, key string) (v string) {
	if md != nil {
		switch vv := md.Get(key).(type) {
		case string:
			return vv
		case int:
			return strconv.Itoa(vv)
		case bool:
			return strconv.FormatBool(vv)
		}
	}
	return
}

// GetDuration accepts a Go duration string or a number of seconds.
func GetDuration(md Metadata, key string) (v time.Duration) {
	if md == nil {
		return
	}
	switch vv := md.Get(key).(type) {
	case int:
		return time.Duration(vv) * time.Second
	case float64:
		return time.Duration(vv * float64(time.Second))
	case time.Duration:
		return vv
	case string:
		v, _ = time.ParseDuration(vv)
		if v == 0 {
			n, _ := strconv.Atoi(vv)
			v = time.Duration(n) * time.Second
		}
	}
	return
}

func GetStrings(md Metadata, key string) (ss []string) {
	if md == nil {
		return
	}
	switch v := md.Get(key).(type) {
	case []string:
		ss = v
	case []any:
		for _, vv := range v {
			if s, ok := vv.(string); ok {
				ss = append(ss, s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				ss = append(ss, s)
			}
		}
	}
	return
}
