package models

// CheckID names one rule in the touchpoint check library.
//
// The set of check ids is closed: every id below has exactly one
// implementation registered in the checks package.
type CheckID string

// Registered check ids
const (
	CheckImageAlt         CheckID = "image-alt"
	CheckDocumentLanguage CheckID = "document-language"
	CheckPageTitle        CheckID = "page-title"
	CheckLinkName         CheckID = "link-name"
	CheckButtonName       CheckID = "button-name"
	CheckFormLabel        CheckID = "form-label"
	CheckHeadingOrder     CheckID = "heading-order"
	CheckFocusContrast    CheckID = "focus-contrast"
	CheckTextContrast     CheckID = "text-contrast"
)

// AllCheckIDs lists every registered check id in registration order.
func AllCheckIDs() []CheckID {
	return []CheckID{
		CheckImageAlt,
		CheckDocumentLanguage,
		CheckPageTitle,
		CheckLinkName,
		CheckButtonName,
		CheckFormLabel,
		CheckHeadingOrder,
		CheckFocusContrast,
		CheckTextContrast,
	}
}

// Touchpoint is a named category of accessibility check.
type Touchpoint string

// Touchpoints used by the registered checks
const (
	TouchpointImages    Touchpoint = "images"
	TouchpointPage      Touchpoint = "page"
	TouchpointLinks     Touchpoint = "links"
	TouchpointButtons   Touchpoint = "buttons"
	TouchpointForms     Touchpoint = "forms"
	TouchpointHeadings  Touchpoint = "headings"
	TouchpointFocus     Touchpoint = "focus_management"
	TouchpointColors    Touchpoint = "colors_contrast"
	TouchpointResultMgt Touchpoint = "result_management"
)

// Impact is the severity attached to a finding.
type Impact string

// Impact levels
const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
	ImpactNone   Impact = "none"
)
