package item

// fields.go - Item type and field registry tables.
// These tables drive normalization and give handler authors the authority
// on which fields each item type accepts.

// commonFields are accepted by every item type.
var commonFields = []string{
	"title",
	"date",
	"url",
	"language",
	"shortTitle",
	"abstractNote",
	"extra",
	"rights",
	"archive",
	"archiveLocation",
	"libraryCatalog",
	"callNumber",
	"accessDate",
}

// typeFields lists the additional fields accepted by each item type.
// Type-specific synonym targets (bookTitle, proceedingsTitle, ...) are
// listed on the types they belong to.
var typeFields = map[string][]string{
	"journalArticle": {
		"publicationTitle", "volume", "issue", "pages", "series",
		"seriesTitle", "seriesText", "journalAbbreviation", "DOI", "ISSN",
	},
	"book": {
		"publisher", "place", "volume", "numberOfVolumes", "edition",
		"series", "seriesNumber", "ISBN", "numPages",
	},
	"bookSection": {
		"bookTitle", "publisher", "place", "volume", "numberOfVolumes",
		"edition", "series", "seriesNumber", "ISBN", "pages",
	},
	"newspaperArticle": {
		"publicationTitle", "place", "edition", "section", "pages", "ISSN",
	},
	"magazineArticle": {
		"publicationTitle", "volume", "issue", "pages", "ISSN",
	},
	"webpage": {
		"websiteTitle", "websiteType",
	},
	"blogPost": {
		"blogTitle", "websiteType",
	},
	"forumPost": {
		"forumTitle", "postType",
	},
	"conferencePaper": {
		"proceedingsTitle", "conferenceName", "place", "publisher",
		"volume", "pages", "series", "DOI", "ISBN",
	},
	"thesis": {
		"thesisType", "university", "place", "numPages",
	},
	"report": {
		"reportNumber", "reportType", "institution", "place", "pages",
		"seriesTitle",
	},
	"preprint": {
		"repository", "archiveID", "DOI",
	},
	"patent": {
		"patentNumber", "issueDate", "applicationNumber",
		"issuingAuthority", "country", "assignee", "legalStatus", "pages",
	},
	"presentation": {
		"presentationType", "meetingName", "place",
	},
	"encyclopediaArticle": {
		"encyclopediaTitle", "publisher", "place", "volume",
		"numberOfVolumes", "edition", "series", "seriesNumber", "ISBN",
		"pages",
	},
	"dictionaryEntry": {
		"dictionaryTitle", "publisher", "place", "volume",
		"numberOfVolumes", "edition", "series", "seriesNumber", "ISBN",
		"pages",
	},
	"document": {
		"publisher",
	},
	"manuscript": {
		"manuscriptType", "place", "numPages",
	},
	"letter": {
		"letterType",
	},
	"interview": {
		"interviewMedium",
	},
	"film": {
		"distributor", "genre", "videoRecordingFormat", "runningTime",
	},
	"videoRecording": {
		"studio", "videoRecordingFormat", "volume", "numberOfVolumes",
		"place", "runningTime", "ISBN",
	},
	"audioRecording": {
		"label", "audioRecordingFormat", "volume", "numberOfVolumes",
		"place", "runningTime", "ISBN",
	},
	"radioBroadcast": {
		"programTitle", "episodeNumber", "audioRecordingFormat", "place",
		"network", "runningTime",
	},
	"tvBroadcast": {
		"programTitle", "episodeNumber", "videoRecordingFormat", "place",
		"network", "runningTime",
	},
	"podcast": {
		"seriesTitle", "episodeNumber", "audioFileType", "runningTime",
	},
	"computerProgram": {
		"seriesTitle", "versionNumber", "system", "place", "company",
		"programmingLanguage", "ISBN",
	},
	"artwork": {
		"artworkMedium", "artworkSize",
	},
	"map": {
		"mapType", "scale", "seriesTitle", "edition", "place", "publisher",
		"ISBN",
	},
	"bill": {
		"billNumber", "code", "codeVolume", "section", "codePages",
		"legislativeBody", "session", "history",
	},
	"case": {
		"caseName", "court", "dateDecided", "docketNumber", "reporter",
		"reporterVolume", "firstPage", "history",
	},
	"statute": {
		"nameOfAct", "code", "codeNumber", "publicLawNumber",
		"dateEnacted", "section", "history",
	},
	"email": {
		"subject",
	},
	"instantMessage": {},
}

// baseFieldSynonyms maps a generic base field to its type-specific name.
// Outer key: base field. Inner key: item type. Inner value: the field
// that replaces the base field on that type.
var baseFieldSynonyms = map[string]map[string]string{
	"publicationTitle": {
		"bookSection":         "bookTitle",
		"conferencePaper":     "proceedingsTitle",
		"webpage":             "websiteTitle",
		"blogPost":            "blogTitle",
		"forumPost":           "forumTitle",
		"encyclopediaArticle": "encyclopediaTitle",
		"dictionaryEntry":     "dictionaryTitle",
		"radioBroadcast":      "programTitle",
		"tvBroadcast":         "programTitle",
		"podcast":             "seriesTitle",
	},
	"publisher": {
		"thesis":          "university",
		"film":            "distributor",
		"report":          "institution",
		"audioRecording":  "label",
		"videoRecording":  "studio",
		"radioBroadcast":  "network",
		"tvBroadcast":     "network",
		"computerProgram": "company",
	},
	"date": {
		"patent":  "issueDate",
		"case":    "dateDecided",
		"statute": "dateEnacted",
	},
	"number": {
		"report":         "reportNumber",
		"bill":           "billNumber",
		"patent":         "patentNumber",
		"statute":        "publicLawNumber",
		"case":           "docketNumber",
		"radioBroadcast": "episodeNumber",
		"tvBroadcast":    "episodeNumber",
		"podcast":        "episodeNumber",
	},
	"type": {
		"report":       "reportType",
		"thesis":       "thesisType",
		"letter":       "letterType",
		"manuscript":   "manuscriptType",
		"map":          "mapType",
		"presentation": "presentationType",
		"film":         "genre",
		"forumPost":    "postType",
		"webpage":      "websiteType",
		"blogPost":     "websiteType",
	},
	"title": {
		"case":    "caseName",
		"statute": "nameOfAct",
		"email":   "subject",
	},
	"pages": {
		"case": "firstPage",
	},
	"volume": {
		"case": "reporterVolume",
		"bill": "codeVolume",
	},
	"medium": {
		"film":           "videoRecordingFormat",
		"videoRecording": "videoRecordingFormat",
		"tvBroadcast":    "videoRecordingFormat",
		"audioRecording": "audioRecordingFormat",
		"radioBroadcast": "audioRecordingFormat",
		"podcast":        "audioFileType",
		"artwork":        "artworkMedium",
		"interview":      "interviewMedium",
	},
}

// knownFields is every field named anywhere in the registry.
var knownFields map[string]bool

// validByType caches the full accepted field set per item type.
var validByType map[string]map[string]bool

func init() {
	knownFields = make(map[string]bool)
	validByType = make(map[string]map[string]bool, len(typeFields))

	for _, f := range commonFields {
		knownFields[f] = true
	}
	for itemType, fields := range typeFields {
		set := make(map[string]bool, len(commonFields)+len(fields))
		for _, f := range commonFields {
			set[f] = true
		}
		for _, f := range fields {
			set[f] = true
			knownFields[f] = true
		}
		validByType[itemType] = set
	}
	for base, byType := range baseFieldSynonyms {
		knownFields[base] = true
		for _, specific := range byType {
			knownFields[specific] = true
		}
	}
}

// KnownType returns true if the item type is in the registry.
func KnownType(itemType string) bool {
	_, ok := validByType[itemType]
	return ok
}

// Types returns all registered item types, unordered.
func Types() []string {
	out := make([]string, 0, len(validByType))
	for t := range validByType {
		out = append(out, t)
	}
	return out
}

// KnownField returns true if the field is named anywhere in the registry.
func KnownField(field string) bool {
	return knownFields[field]
}

// ValidField returns true if the field is accepted for the item type.
// Unregistered item types accept any known field.
func ValidField(itemType, field string) bool {
	set, ok := validByType[itemType]
	if !ok {
		return knownFields[field]
	}
	return set[field]
}

// Synonym returns the type-specific field name that replaces the given
// base field on the item type, if one exists.
func Synonym(itemType, baseField string) (string, bool) {
	byType, ok := baseFieldSynonyms[baseField]
	if !ok {
		return "", false
	}
	specific, ok := byType[itemType]
	return specific, ok
}
