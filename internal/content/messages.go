package content

// Message bodies use Telegram legacy Markdown.
const (
	StartText = `🌿 *مرحبًا بك في بوت الأذكار* 🌿

*قال تعالى: "فاذكروني أذكركم واشكروا لي ولا تكفرون"*

*هذا البوت يذكرك بالله ويرسل لك أذكارًا يومية*

📌 *قم بإضافة البوت إلى مجموعتك*`

	WelcomeText = `🌿 *أهلاً وسهلاً بكم في بوت الأذكار* 🌿

✅ *تم تفعيل البوت بنجاح*

📿 *سيرسل البوت الأذكار كل 5 دقائق*

🤲 *بارك الله فيكم*`

	MorningCaption      = "🌅 *أذكار الصباح* 🌅"
	MorningFallback     = "🌅 *لا تنس أذكار الصباح* 🌅"
	EveningCaption      = "🌇 *أذكار المساء* 🌇"
	EveningFallback     = "🌇 *لا تنس أذكار المساء* 🌇"
	AfterPrayerCaption  = "🕌 *أذكار ما بعد الصلاة* 🕌"
	AfterPrayerFallback = "🕌 *لا تنس أذكار ما بعد الصلاة* 🕌"

	ChannelButtonText = "📿 تلاوات قرآنية - أجر"
)

// DefaultTexts seeds the texts file and backs it when the file is empty.
var DefaultTexts = []string{
	"سبحان الله وبحمده، سبحان الله العظيم",
	"لا إله إلا الله وحده لا شريك له، له الملك وله الحمد وهو على كل شيء قدير",
	"اللهم صل وسلم على نبينا محمد",
	"أستغفر الله العظيم الذي لا إله إلا هو الحي القيوم وأتوب إليه",
	"لا حول ولا قوة إلا بالله العلي العظيم",
	"سبحان الله والحمد لله ولا إله إلا الله والله أكبر",
	"اللهم أعني على ذكرك وشكرك وحسن عبادتك",
}
