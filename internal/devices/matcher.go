package devices

import (
	"strings"

	"github.com/Sarahmoonshot/nrw-report/internal/config"
)

// Matcher 自由文本名称到设备码的匹配器
//
// 映射表是静态有序配置：先做规范化后的精确匹配，失败时按声明顺序做子串匹配，
// 命中多个 key 时固定取先声明者（已知限制，保持确定性）。
type Matcher struct {
	entries []config.DeviceEntry
	byKey   map[string]string
	codes   map[string]config.DeviceEntry
}

// NewMatcher 创建匹配器，entries 的顺序决定子串匹配的优先级
func NewMatcher(entries []config.DeviceEntry) *Matcher {
	m := &Matcher{
		entries: entries,
		byKey:   make(map[string]string, len(entries)),
		codes:   make(map[string]config.DeviceEntry, len(entries)),
	}
	for _, e := range entries {
		m.byKey[e.Key] = e.Code
		m.codes[e.Code] = e
	}
	return m
}

// Normalize 名称规范化：去掉结尾的 " WTP" 后缀并转小写
func Normalize(name string) string {
	key := strings.TrimSpace(name)
	key = strings.TrimSuffix(key, " WTP")
	key = strings.TrimSuffix(key, " wtp")
	return strings.ToLower(strings.TrimSpace(key))
}

// Match 将名称解析为设备码
//
// 精确匹配优先；否则返回第一个作为子串出现在名称中的已声明 key 对应的设备码。
func (m *Matcher) Match(name string) (string, bool) {
	code, _, ok := m.MatchDetail(name)
	return code, ok
}

// MatchDetail 同 Match，额外返回所有子串命中的候选 key
//
// 候选数大于 1 说明名称有歧义，解析结果仍为先声明者，调用方可据此告警。
func (m *Matcher) MatchDetail(name string) (code string, candidates []string, ok bool) {
	if name == "" {
		return "", nil, false
	}

	key := Normalize(name)
	if c, found := m.byKey[key]; found {
		return c, []string{key}, true
	}

	for _, e := range m.entries {
		if strings.Contains(key, e.Key) {
			if code == "" {
				code = e.Code
			}
			candidates = append(candidates, e.Key)
		}
	}
	if code == "" {
		return "", nil, false
	}
	return code, candidates, true
}

// Contains 设备码是否在映射表中
func (m *Matcher) Contains(code string) bool {
	_, ok := m.codes[code]
	return ok
}

// Label 设备码对应的展示名称
func (m *Matcher) Label(code string) string {
	if e, ok := m.codes[code]; ok {
		return e.Label
	}
	return ""
}

// Entries 返回映射表（声明顺序）
func (m *Matcher) Entries() []config.DeviceEntry {
	return m.entries
}
