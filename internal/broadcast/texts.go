package broadcast

import "fmt"

// NoRecipientsText is shown to the operator when the roster is empty.
const NoRecipientsText = "❌ Hozircha foydalanuvchilar mavjud emas"

// InProgressText is shown when a second broadcast is requested.
const InProgressText = "⏳ Boshqa xabar yuborish jarayoni davom etmoqda. Iltimos, kuting."

// ProgressText renders the in-place progress message after processed recipients.
func ProgressText(r Report, processed int) string {
	return fmt.Sprintf("📤 Xabar yuborilmoqda...\n\n📊 Progress: %d/%d\n✅ Muvaffaqiyatli: %d\n❌ Xatolar: %d",
		processed, r.Total, r.Successful, r.Failed)
}

// ReportText renders the final report.
func ReportText(r Report) string {
	return fmt.Sprintf("✅ <b>Xabar yuborish yakunlandi!</b>\n\n"+
		"📊 <b>Natijalar:</b>\n"+
		"• 👥 Jami: %d ta\n"+
		"• ✅ Muvaffaqiyatli: %d ta\n"+
		"• ❌ Xatolar: %d ta\n"+
		"• 📈 Muvaffaqiyat darajasi: %s%%",
		r.Total, r.Successful, r.Failed, r.SuccessPercent())
}
