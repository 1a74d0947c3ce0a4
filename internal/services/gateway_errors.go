package services

// GatewayErrorInfo describes a gateway decline with user-facing messages.
type GatewayErrorInfo struct {
	Name    string
	Code    string
	Message map[string]string
}

// GatewayError is a structured business failure returned by the gateway.
type GatewayError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	ErrorGroup   string `json:"errorGroup"`
}

func (e *GatewayError) Error() string {
	return "gateway error " + e.ErrorCode + " (" + e.ErrorGroup + "): " + e.ErrorMessage
}

// Info returns the known description of the decline, falling back to a generic one.
func (e *GatewayError) Info() GatewayErrorInfo {
	if info, ok := gatewayErrors[e.ErrorCode]; ok {
		return info
	}
	return GatewayErrorGeneric
}

// UserMessage translates the decline for the given locale ("tr" or "en").
func (e *GatewayError) UserMessage(locale string) string {
	info := e.Info()
	if msg, ok := info.Message[locale]; ok {
		return msg
	}
	return info.Message["en"]
}

var GatewayErrorGeneric = GatewayErrorInfo{
	Name: "PaymentFailed",
	Code: "",
	Message: map[string]string{
		"tr": "Ödeme işlemi gerçekleştirilemedi, lütfen tekrar deneyiniz",
		"en": "The payment could not be completed, please try again",
	},
}

var gatewayErrors = map[string]GatewayErrorInfo{}

func registerGatewayErrors(infos ...GatewayErrorInfo) {
	for _, info := range infos {
		gatewayErrors[info.Code] = info
	}
}

func init() {
	registerGatewayErrors(
		GatewayErrorInfo{Name: "DoNotHonour", Code: "10005", Message: map[string]string{
			"tr": "İşlem onaylanmadı",
			"en": "The transaction was not approved",
		}},
		GatewayErrorInfo{Name: "InvalidTransaction", Code: "10012", Message: map[string]string{
			"tr": "Geçersiz işlem",
			"en": "Invalid transaction",
		}},
		GatewayErrorInfo{Name: "FraudSuspect", Code: "10034", Message: map[string]string{
			"tr": "Dolandırıcılık şüphesi nedeniyle işlem onaylanmadı",
			"en": "The transaction was declined on suspicion of fraud",
		}},
		GatewayErrorInfo{Name: "LostCard", Code: "10041", Message: map[string]string{
			"tr": "Kayıp kart, lütfen bankanızla iletişime geçiniz",
			"en": "The card is reported lost, please contact your bank",
		}},
		GatewayErrorInfo{Name: "StolenCard", Code: "10043", Message: map[string]string{
			"tr": "Çalıntı kart, lütfen bankanızla iletişime geçiniz",
			"en": "The card is reported stolen, please contact your bank",
		}},
		GatewayErrorInfo{Name: "InsufficientFunds", Code: "10051", Message: map[string]string{
			"tr": "Kart limiti yetersiz",
			"en": "Insufficient card limit or balance",
		}},
		GatewayErrorInfo{Name: "ExpiredCard", Code: "10054", Message: map[string]string{
			"tr": "Kartın son kullanma tarihi geçmiş",
			"en": "The card has expired",
		}},
		GatewayErrorInfo{Name: "CardholderNotPermitted", Code: "10057", Message: map[string]string{
			"tr": "Kart sahibi bu işlemi yapamaz",
			"en": "The cardholder is not permitted to perform this transaction",
		}},
		GatewayErrorInfo{Name: "TerminalNotPermitted", Code: "10058", Message: map[string]string{
			"tr": "Terminalin bu işlemi yapmaya yetkisi yok",
			"en": "The terminal is not permitted to perform this transaction",
		}},
		GatewayErrorInfo{Name: "InvalidCVC", Code: "10084", Message: map[string]string{
			"tr": "CVC bilgisi hatalı",
			"en": "The security code is invalid",
		}},
		GatewayErrorInfo{Name: "OnlineClosed", Code: "10093", Message: map[string]string{
			"tr": "Kartınız internetten alışverişe kapalıdır",
			"en": "The card is closed to online purchases",
		}},
		GatewayErrorInfo{Name: "CardDeclined", Code: "10201", Message: map[string]string{
			"tr": "Kart, işleme izin vermedi",
			"en": "The card did not allow the transaction",
		}},
		GatewayErrorInfo{Name: "GeneralError", Code: "10204", Message: map[string]string{
			"tr": "Ödeme işlemi esnasında genel bir hata oluştu",
			"en": "A general error occurred during payment",
		}},
		GatewayErrorInfo{Name: "InvalidCVCLength", Code: "10206", Message: map[string]string{
			"tr": "CVC uzunluğu geçersiz",
			"en": "The security code length is invalid",
		}},
		GatewayErrorInfo{Name: "CallBank", Code: "10207", Message: map[string]string{
			"tr": "Bankanızdan onay alınız",
			"en": "Please obtain approval from your bank",
		}},
		GatewayErrorInfo{Name: "BlockedCard", Code: "10209", Message: map[string]string{
			"tr": "Kart bloke edilmiş",
			"en": "The card is blocked",
		}},
		GatewayErrorInfo{Name: "InvalidCardNumber", Code: "10215", Message: map[string]string{
			"tr": "Geçersiz kart numarası",
			"en": "Invalid card number",
		}},
		GatewayErrorInfo{Name: "BankTimeout", Code: "10219", Message: map[string]string{
			"tr": "Bankaya gönderilen istek zaman aşımına uğradı",
			"en": "The request to the bank timed out",
		}},
		GatewayErrorInfo{Name: "RestrictedCard", Code: "10225", Message: map[string]string{
			"tr": "Kısıtlı kart",
			"en": "Restricted card",
		}},
		GatewayErrorInfo{Name: "BankUnavailable", Code: "10228", Message: map[string]string{
			"tr": "Banka veya terminal işlem yapamıyor",
			"en": "The bank or terminal cannot process the transaction",
		}},
		GatewayErrorInfo{Name: "InvalidExpiry", Code: "10229", Message: map[string]string{
			"tr": "Son kullanma tarihi geçersiz",
			"en": "Invalid expiry date",
		}},
	)
}
