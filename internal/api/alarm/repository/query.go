package alarmRepository

const (
	alarmColumns = `
		id,
		label,
		fire_at,
		mission,
		tone,
		persona,
		voice_id,
		enabled,
		snooze_max_count,
		snooze_duration_ms,
		snooze_count,
		content_text,
		content_audio_ref,
		content_voice_id,
		content_intent_id,
		content_duration_ms,
		content_created_at,
		created_at,
		updated_at
	`

	queryCreateAlarm = `
		INSERT INTO alarms (
			id,
			label,
			fire_at,
			mission,
			tone,
			persona,
			voice_id,
			enabled,
			snooze_max_count,
			snooze_duration_ms,
			snooze_count,
			created_at,
			updated_at
		) VALUES (
			:id,
			:label,
			:fire_at,
			:mission,
			:tone,
			:persona,
			:voice_id,
			:enabled,
			:snooze_max_count,
			:snooze_duration_ms,
			0,
			:created_at,
			:updated_at
		)
	`

	queryGetAlarmByID = `SELECT ` + alarmColumns + ` FROM alarms WHERE id = :id`

	queryListAlarms = `SELECT ` + alarmColumns + ` FROM alarms ORDER BY fire_at ASC, id ASC`

	queryUpdateAlarm = `
		UPDATE alarms SET
			label = :label,
			fire_at = :fire_at,
			mission = :mission,
			tone = :tone,
			persona = :persona,
			voice_id = :voice_id,
			enabled = :enabled,
			snooze_max_count = :snooze_max_count,
			snooze_duration_ms = :snooze_duration_ms,
			updated_at = :updated_at
		WHERE id = :id
	`

	queryDeleteAlarm = `DELETE FROM alarms WHERE id = :id`

	querySaveGeneratedContent = `
		UPDATE alarms SET
			content_text = :content_text,
			content_audio_ref = :content_audio_ref,
			content_voice_id = :content_voice_id,
			content_intent_id = :content_intent_id,
			content_duration_ms = :content_duration_ms,
			content_created_at = :content_created_at,
			updated_at = :updated_at
		WHERE id = :id
	`

	queryIncrementSnooze = `
		UPDATE alarms SET
			snooze_count = snooze_count + 1,
			updated_at = :updated_at
		WHERE id = :id AND snooze_count < snooze_max_count
	`

	queryResetSnooze = `
		UPDATE alarms SET
			snooze_count = 0,
			updated_at = :updated_at
		WHERE id = :id
	`
)
