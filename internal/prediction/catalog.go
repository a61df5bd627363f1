package prediction

// urgentAction is prepended to the recommended actions of high-risk threats
const urgentAction = "URGENT: Take immediate protective action and warn your contacts"

const highRiskThreshold = 0.75

type threatEntry struct {
	window  TimeWindow
	factors []Factor
	actions []string
}

var threatCatalog = map[ThreatType]threatEntry{
	ThreatMpesaScam: {
		window: WindowNextHour,
		factors: []Factor{
			{Name: "High mobile money activity", Weight: 0.8, Impact: ImpactHigh},
			{Name: "Active M-Pesa scam reports", Weight: 0.7, Impact: ImpactHigh},
			{Name: "Peak transaction hours", Weight: 0.5, Impact: ImpactMedium},
		},
		actions: []string{
			"Never share your M-Pesa PIN with anyone",
			"Verify reversal requests directly with Safaricom on 100",
			"Confirm payments in your M-Pesa statement before releasing goods",
		},
	},
	ThreatPhishing: {
		window: WindowNextHour,
		factors: []Factor{
			{Name: "Suspicious links in messages", Weight: 0.8, Impact: ImpactHigh},
			{Name: "Impersonation of trusted brands", Weight: 0.6, Impact: ImpactMedium},
		},
		actions: []string{
			"Do not click links in unsolicited messages",
			"Type website addresses yourself instead of following links",
			"Enable two-factor authentication on important accounts",
		},
	},
	ThreatSimSwap: {
		window: WindowNext6Hours,
		factors: []Factor{
			{Name: "Exposed personal details", Weight: 0.7, Impact: ImpactHigh},
			{Name: "Unexpected loss of network signal", Weight: 0.6, Impact: ImpactMedium},
		},
		actions: []string{
			"Contact your network provider immediately if your SIM stops working",
			"Set a SIM PIN and a strong M-Pesa PIN",
			"Do not share ID details over the phone",
		},
	},
	ThreatRomanceScam: {
		window: WindowNextWeek,
		factors: []Factor{
			{Name: "Increased social media activity", Weight: 0.6, Impact: ImpactMedium},
			{Name: "Requests for money from online contacts", Weight: 0.8, Impact: ImpactHigh},
		},
		actions: []string{
			"Never send money to someone you have not met in person",
			"Reverse image search profile photos",
			"Talk to family or friends about new online relationships",
		},
	},
	ThreatInvestmentFraud: {
		window: WindowNextWeek,
		factors: []Factor{
			{Name: "Promises of guaranteed returns", Weight: 0.8, Impact: ImpactHigh},
			{Name: "Pressure to recruit others", Weight: 0.6, Impact: ImpactMedium},
		},
		actions: []string{
			"Check that the scheme is licensed by the Capital Markets Authority",
			"Be wary of returns that sound too good to be true",
			"Never invest money you cannot afford to lose",
		},
	},
	ThreatFakeJobOffer: {
		window: WindowNext24Hours,
		factors: []Factor{
			{Name: "Upfront fee requests", Weight: 0.8, Impact: ImpactHigh},
			{Name: "Unverified recruiters", Weight: 0.5, Impact: ImpactMedium},
		},
		actions: []string{
			"Legitimate employers never charge application fees",
			"Verify the company through official channels",
			"Do not share ID or bank details before signing a contract",
		},
	},
	ThreatIdentityTheft: {
		window: WindowNext24Hours,
		factors: []Factor{
			{Name: "Personal data shared online", Weight: 0.7, Impact: ImpactHigh},
			{Name: "Weak account security", Weight: 0.5, Impact: ImpactMedium},
		},
		actions: []string{
			"Limit the personal information you share publicly",
			"Monitor your accounts and credit reports",
			"Report lost ID documents immediately",
		},
	},
	ThreatSocialEngineering: {
		window: WindowNext24Hours,
		factors: []Factor{
			{Name: "Unsolicited contact from strangers", Weight: 0.6, Impact: ImpactMedium},
			{Name: "Urgency and pressure tactics", Weight: 0.7, Impact: ImpactHigh},
		},
		actions: []string{
			"Pause before acting on urgent requests",
			"Verify callers by calling back on an official number",
			"Never share one-time passwords",
		},
	},
}

type scamEntry struct {
	demographics []string
	channels     []string
	indicators   []string
	factors      []Factor
	actions      []string
}

var scamCatalog = map[ScamType]scamEntry{
	ScamMpesaReversal: {
		demographics: []string{"Small business owners", "M-Pesa agents", "Online sellers"},
		channels:     []string{"SMS", "Phone call"},
		indicators:   []string{"Fake confirmation message", "Request to reverse a payment", "Pressure to act quickly"},
		factors: []Factor{
			{Name: "Reversal wording", Weight: 0.8, Impact: ImpactHigh},
			{Name: "M-Pesa keywords", Weight: 0.7, Impact: ImpactHigh},
		},
		actions: []string{
			"Check your M-Pesa balance before refunding anything",
			"Only Safaricom can reverse transactions",
		},
	},
	ScamFakePrize: {
		demographics: []string{"Young adults", "Elderly"},
		channels:     []string{"SMS", "WhatsApp", "Phone call"},
		indicators:   []string{"Unexpected winnings", "Fee to claim a prize", "Unknown promotion"},
		factors: []Factor{
			{Name: "Prize wording", Weight: 0.8, Impact: ImpactHigh},
			{Name: "Request for payment", Weight: 0.6, Impact: ImpactMedium},
		},
		actions: []string{
			"You cannot win a competition you never entered",
			"Never pay to receive a prize",
		},
	},
	ScamLoan: {
		demographics: []string{"Students", "Low-income earners", "Small traders"},
		channels:     []string{"SMS", "Social media", "Mobile apps"},
		indicators:   []string{"Instant approval without checks", "Upfront processing fee", "Unregistered lender"},
		factors: []Factor{
			{Name: "Loan wording", Weight: 0.7, Impact: ImpactHigh},
			{Name: "Guaranteed approval", Weight: 0.6, Impact: ImpactMedium},
		},
		actions: []string{
			"Borrow only from lenders licensed by the Central Bank of Kenya",
			"Never pay a fee before receiving a loan",
		},
	},
	ScamFakeCustomerCare: {
		demographics: []string{"All mobile money users"},
		channels:     []string{"Phone call", "SMS", "Social media"},
		indicators:   []string{"Caller from a personal number", "Request for PIN or OTP", "Account suspension threat"},
		factors: []Factor{
			{Name: "Impersonation wording", Weight: 0.8, Impact: ImpactHigh},
			{Name: "Credential request", Weight: 0.8, Impact: ImpactHigh},
		},
		actions: []string{
			"Customer care will never ask for your PIN",
			"Call the official customer care number yourself",
		},
	},
	ScamPhishingLink: {
		demographics: []string{"Online banking users", "Social media users"},
		channels:     []string{"SMS", "Email", "WhatsApp"},
		indicators:   []string{"Shortened or misspelled link", "Login request", "Account verification prompt"},
		factors: []Factor{
			{Name: "Link present", Weight: 0.8, Impact: ImpactHigh},
			{Name: "Verification wording", Weight: 0.6, Impact: ImpactMedium},
		},
		actions: []string{
			"Do not open the link",
			"Report the message to 333",
		},
	},
	ScamInvestment: {
		demographics: []string{"Young professionals", "Retirees", "Diaspora"},
		channels:     []string{"WhatsApp groups", "Social media", "Telegram"},
		indicators:   []string{"Guaranteed high returns", "Pressure to recruit", "Unlicensed scheme"},
		factors: []Factor{
			{Name: "Return promises", Weight: 0.8, Impact: ImpactHigh},
			{Name: "Recruitment pressure", Weight: 0.6, Impact: ImpactMedium},
		},
		actions: []string{
			"Verify the scheme with the Capital Markets Authority",
			"Walk away from guaranteed returns",
		},
	},
	ScamJob: {
		demographics: []string{"Job seekers", "Recent graduates"},
		channels:     []string{"SMS", "Job boards", "Social media"},
		indicators:   []string{"Application or medical fee", "Overseas job with no interview", "Unverified agency"},
		factors: []Factor{
			{Name: "Fee request", Weight: 0.8, Impact: ImpactHigh},
			{Name: "Too-good offer", Weight: 0.5, Impact: ImpactMedium},
		},
		actions: []string{
			"Never pay to get a job",
			"Check recruitment agencies with the National Employment Authority",
		},
	},
}

var profilePatterns = map[RiskProfile][]string{
	ProfileConservative: {"Limited app usage", "Predictable daily routine"},
	ProfileBalanced:     {"Moderate communication volume", "Regular activity hours"},
	ProfileAdventurous:  {"Frequent new contacts", "Wide range of visited locations"},
	ProfileVulnerable:   {"High responsiveness to unknown contacts", "Frequent financial activity"},
	ProfileHighRisk:     {"Irregular activity hours", "Heavy use of a single app", "High volume of unknown contacts"},
}

var profileWarnings = map[RiskProfile]string{
	ProfileVulnerable: "Your activity pattern is commonly targeted by scammers",
	ProfileHighRisk:   "Your activity pattern carries a high risk of fraud exposure",
}

var vulnerabilityDescriptions = map[VulnerabilityType]string{
	VulnerabilityFinancial:         "Exposure to mobile money and payment fraud",
	VulnerabilitySocialEngineering: "Susceptibility to manipulation by strangers",
	VulnerabilityPrivacy:           "Personal information may be exposed",
}

var vulnerabilityWarnings = map[VulnerabilityType]string{
	VulnerabilityFinancial:         "Double-check every payment request before sending money",
	VulnerabilitySocialEngineering: "Be cautious with unsolicited calls and messages",
	VulnerabilityPrivacy:           "Review what personal information you share online",
}

const anomalyWarning = "Unusual activity detected on your account"

// windowFor returns the time window for a threat category
func windowFor(t ThreatType) TimeWindow {
	if e, ok := threatCatalog[t]; ok {
		return e.window
	}
	return WindowNext24Hours
}

// scopeFor estimates the geographic scope of a threat
func scopeFor(t ThreatType, hasCommunityAlerts bool) GeographicScope {
	switch {
	case hasCommunityAlerts:
		return ScopeLocalArea
	case t == ThreatMpesaScam || t == ThreatInvestmentFraud:
		return ScopeNational
	default:
		return ScopeRegional
	}
}

// threatActions returns a fresh action list, urgent first above the high-risk threshold
func threatActions(t ThreatType, probability float64) []string {
	base := threatCatalog[t].actions
	actions := make([]string, 0, len(base)+1)
	if probability > highRiskThreshold {
		actions = append(actions, urgentAction)
	}
	return append(actions, base...)
}

func threatFactors(t ThreatType) []Factor {
	return cloneFactors(threatCatalog[t].factors)
}

func cloneFactors(f []Factor) []Factor {
	return append([]Factor{}, f...)
}

func cloneStrings(s []string) []string {
	return append([]string{}, s...)
}
