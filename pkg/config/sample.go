package config

// SampleConfig is written by `fanslydl config init`
const SampleConfig = `# fanslydl configuration
account:
  # Value of the authorization token from a logged-in browser session
  token: ""
  user_agent: "` + DefaultUserAgent + `"
  check_key: "` + DefaultCheckKey + `"

targets:
  usernames: []
  # post_id: "1234567890123"

options:
  download_dir: "."
  # normal | timeline | messages | single | collection
  mode: normal
  download_previews: true
  separate_messages: true
  separate_timeline: true
  separate_previews: false
  use_folder_suffix: true
  # stop a source after this many consecutive duplicates
  use_duplicate_threshold: false
  duplicate_threshold: 50
  # maximum Hamming distance for two images to count as the same picture
  use_perceptual_match: true
  phash_threshold: 8
  timeline_retries: 1
  timeline_delay_seconds: 60
  item_retries: 3
  requests_per_minute: 60
  request_timeout: 60s

logging:
  level: info
  file: ""
`
