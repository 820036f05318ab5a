package report

// AnalysisSchemaName names AnalysisSchema for validation errors.
const AnalysisSchemaName = "scouting_analysis"

// AnalysisSchema is the JSON Schema a generated Analysis must satisfy.
const AnalysisSchema = `{
  "type": "object",
  "required": [
    "archetype", "archetype_description", "strengths", "weaknesses",
    "trajectory_analysis", "trajectory_summary", "national_team_assessments",
    "final_recommendation"
  ],
  "properties": {
    "archetype": {
      "enum": [
        "Scoring Playmaker", "3&D Wing", "Rim Protector", "Floor General", "Slasher",
        "Spot-Up Shooter", "Stretch Big", "Two-Way Wing", "Athletic Finisher", "Post Scorer"
      ]
    },
    "archetype_description": {"type": "string", "minLength": 1},
    "strengths": {"type": "array", "minItems": 1, "items": {"$ref": "#/$defs/point"}},
    "weaknesses": {"type": "array", "minItems": 1, "items": {"$ref": "#/$defs/point"}},
    "trajectory_analysis": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["season", "ppg", "trend_description"],
        "properties": {
          "season": {"type": "string"},
          "ppg": {"type": "number"},
          "trend_description": {"type": "string"},
          "percentage_change": {"type": ["number", "null"]}
        }
      }
    },
    "trajectory_summary": {"type": "string"},
    "national_team_assessments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["team_type", "fit_rating", "rationale"],
        "properties": {
          "team_type": {"type": "string"},
          "fit_rating": {
            "enum": ["Strong Fit", "Good Fit", "Depth Consideration", "Developmental", "Not Recommended"]
          },
          "rationale": {"type": "string"}
        }
      }
    },
    "final_recommendation": {
      "type": "object",
      "required": [
        "verdict_title", "summary", "best_use_cases",
        "overall_grade_domestic", "overall_grade_national"
      ],
      "properties": {
        "verdict_title": {"type": "string"},
        "summary": {"type": "string"},
        "best_use_cases": {"type": "array", "items": {"type": "string"}},
        "overall_grade_domestic": {"$ref": "#/$defs/grade"},
        "overall_grade_national": {"$ref": "#/$defs/grade"}
      }
    }
  },
  "$defs": {
    "point": {
      "type": "object",
      "required": ["title", "description"],
      "properties": {
        "title": {"type": "string", "minLength": 1},
        "description": {"type": "string"}
      }
    },
    "grade": {"type": "string", "pattern": "^[A-F][+-]?$"}
  }
}`
