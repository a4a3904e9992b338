package watcher

import "fmt"

// Portal markup constants. These describe one deployment of the
// scheduling portal at one point in time; they are configuration, not
// protocol, and there is no expectation that they survive a portal
// redesign.

const (
	defaultPortalUrl = "https://skiptheline.ncdot.gov/Webapp/Appointment/Index/a7ade79b-996d-4971-8766-97feb75254de"

	windowWidth  = 1280
	windowHeight = 775

	// the number of offices in the service territory, which bounds both
	// the cache and the per-session stream
	officeCount = 117
)

const (
	makeApptButton = "#cmdMakeAppt"

	officeItemSelector  = ".QflowObjectItem"
	officeChildSelector = ".form-control-child"
	activeUnitClass     = "Active-Unit"

	datepickerMonth   = ".ui-datepicker-month"
	datepickerYear    = ".ui-datepicker-year"
	availableDateLink = "a.ui-state-default.ui-state-active"

	backButton = "#BackButton"
	nextButton = ".next-button"

	firstNameInput    = "#StepControls_0__Model_Value_Properties_0__Value"
	lastNameInput     = "#StepControls_0__Model_Value_Properties_1__Value"
	phoneNumberInput  = "#StepControls_0__Model_Value_Properties_2__Value"
	emailInput        = "#StepControls_0__Model_Value_Properties_3__Value"
	confirmEmailInput = "#StepControls_0__Model_Value_Properties_4__Value"
)

// body texts the portal shows when a "reservable" office turns out to
// have nothing actually bookable
const (
	noAppointmentsMessage = "This office does not currently have any appointments available in the next 90 days. Please try scheduling an appointment at another office or try again tomorrow when a new day's appointments will be available."
	selectDateMessage     = "Please select a date and time to continue."
	rejectionMessage      = "Your request could not be processed at this time."
)

const recaptchaSiteKey = "6LdXYkIaAAAAAOB7gmMltrm1eRl-ZTFdhlq3C4ww"

// the portal wires its recaptcha widget to a global callback; injecting
// the token through it is equivalent to the widget resolving naturally
func captchaCallbackScript(token string) string {
	return fmt.Sprintf(
		`document.getElementById('g-recaptcha-response').innerHTML = %[1]q;
if (typeof onCaptchaResolved === 'function') { onCaptchaResolved(%[1]q); }`,
		token,
	)
}
