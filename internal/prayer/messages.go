package prayer

var alertTexts = map[Name]string{
	Fajr: `🌅 *تنبيه صلاة الفجر* 🌅

⏰ *خمس دقائق على الأذان*

🕌 *لا تنس الوضوء والاستعداد للصلاة*`,
	Dhuhr: `☀️ *تنبيه صلاة الظهر* ☀️

⏰ *خمس دقائق على الأذان*

🕌 *توقف قليلاً واستعد للصلاة*`,
	Asr: `🌤️ *تنبيه صلاة العصر* 🌤️

⏰ *خمس دقائق على الأذان*

⚠️ *الصلاة الوسطى - لا تفوتها*`,
	Maghrib: `🌅 *تنبيه صلاة المغرب* 🌅

⏰ *خمس دقائق على الأذان*

🌇 *وقت استجابة الدعاء*`,
	Isha: `🌙 *تنبيه صلاة العشاء* 🌙

⏰ *خمس دقائق على الأذان*

🌟 *آخر صلاة في اليوم*`,
}

// AlertText is the pre-prayer message for n.
func AlertText(n Name) string {
	if t, ok := alertTexts[n]; ok {
		return t
	}
	return "🕌 *اقترب موعد الصلاة* 🕌"
}
