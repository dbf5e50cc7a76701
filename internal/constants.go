/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package internal

const (
	Version        = "0.4.0"
	UserAgent      = "knockout-tdbot/" + Version + " (+https://github.com/mikeb26/knockout-tdbot)"
	LichessBaseURL = "https://lichess.org"
	GitHubBaseURL  = "https://api.github.com"
	Bye            = "BYE"
)
