package sharetime

import (
	"time"
)

// sameUTCDay 判断两个时间是否在同一个UTC自然日
func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// weeklyAverageHours 返回一周的日均时长，单位为小时
func weeklyAverageHours(week WeekSlots) float64 {
	return week.Sum().Hours() / DaysPerWeek
}

// applyLogin 在登录时更新记录。
// 如果距离上次登录已经跨过了UTC日界，先把当天的累计写入周槽位再推进槽位；
// 从未登录过的记录不做日切换。
func (r *Record) applyLogin(now time.Time) {
	now = now.UTC()
	if !r.Fresh() && !sameUTCDay(*r.LastLogin, now) {
		r.rollover()
	}
	r.LastLogin = &now
}

// rollover 把 CurrentDaily 写入当前槽位，写满一周时计算周均值和趋势并清空所有槽位。
// 每次只推进一个槽位，中间没有登录的日子不会补零。
// CurrentDaily 本身不清零，之后的登出继续在它上面累加。
func (r *Record) rollover() {
	r.CurrentWeekly[r.CurrentWeekday] = r.CurrentDaily

	if r.CurrentWeekday == DaysPerWeek-1 {
		avg := weeklyAverageHours(r.CurrentWeekly)
		r.Trend = classifyTrend(r.LastWeeklyAverage, avg)
		r.LastWeeklyAverage = avg
		r.CurrentWeekly = WeekSlots{}
	}

	r.CurrentWeekday = (r.CurrentWeekday + 1) % DaysPerWeek
}

// applyLogout 在登出时把本次会话时长计入当天累计。
// 会话跨过UTC日界时不计入任何时长。返回记录是否被修改。
func (r *Record) applyLogout(now time.Time) bool {
	if r.Fresh() || !sameUTCDay(*r.LastLogin, now) {
		return false
	}
	elapsed := now.Sub(*r.LastLogin)
	if elapsed <= 0 {
		return false
	}
	r.CurrentDaily += elapsed
	return true
}
