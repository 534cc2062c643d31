// Package texts holds every outbound message and button label of the bot.
package texts

const (
	// SearchByMedicationButton is the main-menu reply button starting the search funnel.
	SearchByMedicationButton = "🔍 Пошук за ліками"
	// ProductOfTheDayButton is the main-menu reply button showing promoted listings.
	ProductOfTheDayButton = "💊 Товар дня"
	// AllDistrictsButton is the sentinel entry of the district keyboard.
	AllDistrictsButton = "Всі райони"
	// ShowPharmaciesButton opens the pharmacy listing of one chain.
	ShowPharmaciesButton = "Показати аптеки"

	Start            = "Вітаємо! Цей бот допоможе знайти ліки в аптеках міста.\nНатисніть кнопку, щоб розпочати."
	District         = "Оберіть район:"
	Search           = "Введіть назву ліків для пошуку:"
	TypeMore         = "Введіть щонайменше 3 символи для пошуку."
	NotFound         = "На жаль, нічого не знайдено."
	ChooseMedication = "Оберіть ліки зі списку:"
	ChooseChain      = "Оберіть аптечну мережу, щоб побачити адреси та телефони аптек."
	StartOver        = "Щоб розпочати пошук, натисніть кнопку «" + SearchByMedicationButton + "»."
	ProductOfTheDay  = "Товар дня:"
)
