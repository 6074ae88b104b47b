/*

Package log provides a minimal leveled logger for ptr6d. Levels are inclusive:
Silent, Major, Minor and Debug, where each level implies all levels above it.

Output goes to an io.Writer which defaults to os.Stdout and can be redirected
with SetOut or Syslog. Callers which produce output not subject to levels, such
as the per-query logger, write directly to Out().

*/
package log
