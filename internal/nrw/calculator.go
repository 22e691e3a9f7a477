package nrw

// Calculate 计算 NRW 水量与占比
//
// 任一输入为 0（或缺失）时两者都定义为 0：这是“数据不足 ⇒ 不报漏损”的
// 既定口径，不是错误。两者都非零时 nrw = flow − billed，
// 百分比为 nrw/flow×100；负值（计费超过计量）是合法结果，不截断。
func Calculate(flow, billed float64) (nrwM3, nrwPercent float64) {
	if flow == 0 || billed == 0 {
		return 0, 0
	}
	nrwM3 = flow - billed
	nrwPercent = nrwM3 / flow * 100
	return nrwM3, nrwPercent
}
