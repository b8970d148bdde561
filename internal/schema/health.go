package schema

// Shape catalog for stored health documents. Markers here are the single
// source of truth for what is encrypted at rest; adding a call site for one
// of these shapes never requires new encryption code.

var EmergencyContact = MustShape(&Shape{
	Name: "emergency_contact",
	Fields: []Field{
		{Name: "name", Kind: KindEncryptedScalar},
		{Name: "phone", Kind: KindEncryptedScalar},
		{Name: "relation", Kind: KindScalar},
	},
})

var UserProfile = MustShape(&Shape{
	Name: "user_profile",
	Fields: []Field{
		{Name: "email", Kind: KindScalar},
		{Name: "full_name", Kind: KindEncryptedScalar},
		{Name: "date_of_birth", Kind: KindEncryptedScalar},
		{Name: "height_cm", Kind: KindScalar},
		{Name: "weight_kg", Kind: KindEncryptedScalar},
		{Name: "medical_conditions", Kind: KindListOfScalar},
		{Name: "notes", Kind: KindEncryptedScalar},
		{Name: "emergency_contact", Kind: KindNested, Shape: EmergencyContact},
	},
})

var LabResult = MustShape(&Shape{
	Name: "lab_result",
	Fields: []Field{
		{Name: "test_name", Kind: KindScalar},
		{Name: "value", Kind: KindEncryptedScalar},
		{Name: "unit", Kind: KindScalar},
		{Name: "reference_range", Kind: KindScalar},
	},
})

var LabReport = MustShape(&Shape{
	Name: "lab_report",
	Fields: []Field{
		{Name: "user_id", Kind: KindScalar},
		{Name: "lab_name", Kind: KindScalar},
		{Name: "report_date", Kind: KindScalar},
		{Name: "results", Kind: KindListOfNested, Shape: LabResult},
		{Name: "summary", Kind: KindEncryptedScalar},
	},
})

var GlucoseReading = MustShape(&Shape{
	Name: "glucose_reading",
	Fields: []Field{
		{Name: "user_id", Kind: KindScalar},
		{Name: "device_id", Kind: KindScalar},
		{Name: "taken_at", Kind: KindScalar},
		{Name: "value_mgdl", Kind: KindEncryptedScalar},
		{Name: "trend", Kind: KindScalar},
	},
})

var ChatMessage = MustShape(&Shape{
	Name: "chat_message",
	Fields: []Field{
		{Name: "role", Kind: KindScalar},
		{Name: "content", Kind: KindEncryptedScalar},
		{Name: "sent_at", Kind: KindScalar},
	},
})

var ChatThread = MustShape(&Shape{
	Name: "chat_thread",
	Fields: []Field{
		{Name: "user_id", Kind: KindScalar},
		{Name: "title", Kind: KindScalar},
		{Name: "messages", Kind: KindListOfNested, Shape: ChatMessage},
		{Name: "tags", Kind: KindListOfScalar},
	},
})

// Review rejects undeclared fields: app reviews come straight from client
// payloads, and a drifted field name must not slip past the marker table.
var Review = MustShape(&Shape{
	Name: "review",
	Fields: []Field{
		{Name: "user_id", Kind: KindScalar},
		{Name: "rating", Kind: KindScalar},
		{Name: "feedback", Kind: KindEncryptedScalar},
	},
	Unknown: RejectUnknown,
})
