package telemetry

import (
	"sort"
	"time"

	"github.com/Sarahmoonshot/nrw-report/internal/model"
)

// 桶键格式
const (
	DayKeyLayout  = "2006-01-02"
	HourKeyLayout = "2006-01-02 15:00"
)

// BucketKey 读数时间戳对应的桶键（按本地偏移计算桶边界）
func BucketKey(tsMillis int64, g model.Granularity, offset time.Duration) string {
	zone := time.FixedZone("local", int(offset/time.Second))
	t := time.UnixMilli(tsMillis).In(zone)
	if g == model.GranularityHour {
		return t.Format(HourKeyLayout)
	}
	return t.Format(DayKeyLayout)
}

// ResolveDeltas 把累计读数序列折算成逐桶增量水量
//
// 每个桶取时间戳最大的读数为代表（重复读数后到者胜出）；桶键升序排列后，
// delta(i) = 代表值(i) − 代表值(i−1)，任一端缺数则该增量不产出（剔除而非置零）。
// 报表范围的第一个桶需要调用方多取一个前导桶来补种子。
// 计数器复位导致的负增量不截断，置 Anomaly 标记后原样输出。
func ResolveDeltas(readings []model.AccumulatorReading, g model.Granularity, offset time.Duration) []model.DeltaRecord {
	if len(readings) == 0 {
		return nil
	}

	// 各桶代表值：同桶内时间戳最大者
	reps := make(map[string]model.AccumulatorReading)
	for _, r := range readings {
		key := BucketKey(r.TimestampMillis, g, offset)
		if cur, ok := reps[key]; !ok || r.TimestampMillis >= cur.TimestampMillis {
			reps[key] = r
		}
	}

	keys := make([]string, 0, len(reps))
	for k := range reps {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var deltas []model.DeltaRecord
	for i := 1; i < len(keys); i++ {
		prev := reps[keys[i-1]]
		cur := reps[keys[i]]
		if !prev.HasValue() || !cur.HasValue() {
			continue
		}
		volume := *cur.Value - *prev.Value
		deltas = append(deltas, model.DeltaRecord{
			PeriodKey: keys[i],
			Volume:    volume,
			Anomaly:   volume < 0,
		})
	}
	return deltas
}

// DayInstants 生成某月逐日的本地零点时刻（epoch 毫秒）
//
// 含一个前导日：月初第一天的增量需要上月最后一桶做种子。
func DayInstants(year int, month time.Month, offset time.Duration) []int64 {
	zone := time.FixedZone("local", int(offset/time.Second))
	first := time.Date(year, month, 1, 0, 0, 0, 0, zone)
	end := first.AddDate(0, 1, 0)

	var instants []int64
	for t := first.AddDate(0, 0, -1); t.Before(end); t = t.AddDate(0, 0, 1) {
		instants = append(instants, t.UnixMilli())
	}
	return instants
}

// HourInstants 生成某日逐小时的本地整点时刻（epoch 毫秒），含一个前导小时
func HourInstants(year int, month time.Month, day int, offset time.Duration) []int64 {
	zone := time.FixedZone("local", int(offset/time.Second))
	first := time.Date(year, month, day, 0, 0, 0, 0, zone)
	end := first.AddDate(0, 0, 1)

	var instants []int64
	for t := first.Add(-time.Hour); t.Before(end); t = t.Add(time.Hour) {
		instants = append(instants, t.UnixMilli())
	}
	return instants
}

// DaysInMonth 某年某月的自然日数
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
